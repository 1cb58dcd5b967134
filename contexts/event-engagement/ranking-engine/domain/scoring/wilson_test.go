package scoring

import (
	"math"
	"testing"
)

func TestWilsonUndefinedWithoutObservations(t *testing.T) {
	if _, ok := Wilson(0, 0); ok {
		t.Fatalf("expected no estimate for zero observations")
	}
}

func TestWilsonBoundsAndMonotonicity(t *testing.T) {
	small, ok := Wilson(10, 0)
	if !ok {
		t.Fatalf("expected estimate for 10 upvotes")
	}
	large, ok := Wilson(100, 0)
	if !ok {
		t.Fatalf("expected estimate for 100 upvotes")
	}
	if small <= 0 || small >= 1 || large <= 0 || large >= 1 {
		t.Fatalf("estimates out of (0,1): small=%f large=%f", small, large)
	}
	if large <= small {
		t.Fatalf("more evidence should tighten the bound upward: %f <= %f", large, small)
	}

	if lower, _ := Wilson(0, 50); lower != 0 {
		t.Fatalf("all-negative history should clamp to 0, got %f", lower)
	}
}

func TestWilsonFractionalMasses(t *testing.T) {
	got, ok := Wilson(2.5, 0.5)
	if !ok {
		t.Fatalf("expected estimate for fractional masses")
	}
	if got <= 0 || got >= 1 {
		t.Fatalf("fractional-mass estimate out of (0,1): %f", got)
	}
}

func TestBiasZeroWithoutHistory(t *testing.T) {
	if got := Bias(0, 0); got != 0 {
		t.Fatalf("expected bias 0 for empty history, got %f", got)
	}
}

func TestBiasSymmetricAroundMidpoint(t *testing.T) {
	a := Bias(30, 10)
	b := Bias(10, 30)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("expected symmetric bias, got %f and %f", a, b)
	}
}

func TestBiasRewardsBalancedVoters(t *testing.T) {
	balanced := Bias(50, 50)
	onesided := Bias(100, 0)
	if balanced <= onesided {
		t.Fatalf("balanced voter should out-trust one-sided voter: %f <= %f", balanced, onesided)
	}
	if balanced < 0 || balanced > 1 || onesided < 0 || onesided > 1 {
		t.Fatalf("bias out of [0,1]: %f %f", balanced, onesided)
	}
}

func TestItemScoreZeroWithoutMass(t *testing.T) {
	if got := ItemScore(0, 0); got != 0 {
		t.Fatalf("expected score 0 for massless item, got %f", got)
	}
}

func TestItemScoreScalesWithParticipation(t *testing.T) {
	few := ItemScore(3, 0)
	many := ItemScore(30, 0)
	if many <= few {
		t.Fatalf("more weighted mass should score higher: %f <= %f", many, few)
	}

	w, _ := Wilson(4, 1)
	want := w * 5
	if got := ItemScore(4, 1); math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, got)
	}
}
