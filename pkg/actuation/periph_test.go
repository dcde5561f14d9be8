package actuation

import (
	"testing"

	"periph.io/x/conn/v3/gpio"
)

// 50 Hz gives a 20 ms period.
const testPeriodUs = 20000

func TestServoPulseUs(t *testing.T) {
	tests := []struct {
		deg  int
		want int
	}{
		{0, 500},
		{1, 511},
		{45, 1000},
		{90, 1500},
		{135, 2000},
		{180, 2500},
		{-10, 500},
		{200, 2500},
	}
	for _, tc := range tests {
		if got := servoPulseUs(tc.deg, 500, 2500); got != tc.want {
			t.Errorf("servoPulseUs(%d): got %d, want %d", tc.deg, got, tc.want)
		}
	}
}

func TestServoPulseUs_Monotonic(t *testing.T) {
	prev := servoPulseUs(ServoMinAngle, 500, 2500)
	for deg := ServoMinAngle + 1; deg <= ServoMaxAngle; deg++ {
		us := servoPulseUs(deg, 500, 2500)
		if us <= prev {
			t.Fatalf("pulse at %d deg (%d us) not above %d deg (%d us)", deg, us, deg-1, prev)
		}
		prev = us
	}
}

func TestPulseCounts(t *testing.T) {
	tests := []struct {
		us   int
		want int
	}{
		{500, 102},
		{1500, 307},
		{2500, 512},
		{testPeriodUs, pcaResolution},
	}
	for _, tc := range tests {
		if got := pulseCounts(tc.us, testPeriodUs); got != tc.want {
			t.Errorf("pulseCounts(%d): got %d, want %d", tc.us, got, tc.want)
		}
	}
}

func TestPulseDuty(t *testing.T) {
	tests := []struct {
		us   int
		want gpio.Duty
	}{
		{0, 0},
		{ESCFullReversePulse, 838861},
		{ESCNeutralPulse, 1321206},
		{ESCFullForwardPulse, 1677722},
		{testPeriodUs, gpio.DutyMax},
	}
	for _, tc := range tests {
		if got := pulseDuty(tc.us, testPeriodUs); got != tc.want {
			t.Errorf("pulseDuty(%d): got %d, want %d", tc.us, got, tc.want)
		}
	}
}

func TestDefaultConfig_PulsesFitPeriod(t *testing.T) {
	cfg := DefaultConfig()
	period := 1_000_000 / cfg.FrequencyHz
	if period != testPeriodUs {
		t.Fatalf("period: got %d us, want %d", period, testPeriodUs)
	}
	for deg := ServoMinAngle; deg <= ServoMaxAngle; deg++ {
		counts := pulseCounts(servoPulseUs(deg, cfg.ServoMinPulseUs, cfg.ServoMaxPulseUs), period)
		if counts < 102 || counts > 512 {
			t.Fatalf("%d deg -> %d counts, outside the 500-2500 us window", deg, counts)
		}
	}
}
