package bsort

import (
	"errors"
	"testing"
)

func TestNewSorterNilDevice(t *testing.T) {
	if _, err := NewSorter(nil); !errors.Is(err, ErrNoDevice) {
		t.Errorf("NewSorter(nil) = %v, want ErrNoDevice", err)
	}
}

func TestSorterCapability(t *testing.T) {
	dev := newMockDevice("cap")
	dev.maxWG = 256

	tests := []struct {
		name string
		opts []Option
		want int
	}{
		{"device", nil, 256},
		{"capped", []Option{WithMaxWorkGroupSize(64)}, 64},
		{"above device", []Option{WithMaxWorkGroupSize(1024)}, 256},
		{"zero", []Option{WithMaxWorkGroupSize(0)}, 256},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSorter(dev, tt.opts...)
			if err != nil {
				t.Fatal(err)
			}
			if got := s.Capability().MaxWorkGroupSize; got != tt.want {
				t.Errorf("MaxWorkGroupSize = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSorterReport(t *testing.T) {
	dev := newMockDevice("report")
	s, err := NewSorter(dev)
	if err != nil {
		t.Fatal(err)
	}
	data := make([]float32, 128)
	rep, err := s.Sort(data, Descending)
	if err != nil {
		t.Fatalf("Sort() = %v", err)
	}
	want := WorkSizePlan{LocalSize: 4, GlobalSize: 16, NumStages: 4}
	if rep.Plan != want {
		t.Errorf("Plan = %v, want %v", rep.Plan, want)
	}
	if rep.Device != "report" {
		t.Errorf("Device = %q", rep.Device)
	}
	if rep.Launches != 6 || len(dev.launches) != 6 {
		t.Errorf("Launches = %d, device saw %d, want 6", rep.Launches, len(dev.launches))
	}
	if rep.Total() < rep.Sort {
		t.Errorf("Total() = %v less than Sort = %v", rep.Total(), rep.Sort)
	}
}

func TestSorterRefusesIncomplete(t *testing.T) {
	dev := newMockDevice("incomplete")
	s, err := NewSorter(dev)
	if err != nil {
		t.Fatal(err)
	}
	// 96 elements on 4-wide groups gives three work-groups.
	_, err = s.Sort(make([]float32, 96), Ascending)
	if !errors.Is(err, ErrIncompleteNetwork) || !IsIncomplete(err) {
		t.Fatalf("Sort() = %v, want ErrIncompleteNetwork", err)
	}
	if len(dev.launches) != 0 {
		t.Errorf("%d launches issued for a refused plan", len(dev.launches))
	}

	s, err = NewSorter(dev, WithIncompleteNetworks())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Sort(make([]float32, 96), Ascending); err != nil {
		t.Fatalf("Sort() with incomplete networks allowed = %v", err)
	}
	if len(dev.launches) != 5 {
		t.Errorf("got %d launches, want 5", len(dev.launches))
	}
}

func TestSorterPlanningError(t *testing.T) {
	s, err := NewSorter(newMockDevice("plan"))
	if err != nil {
		t.Fatal(err)
	}
	var pe *PlanningError
	if _, err := s.Sort(make([]float32, 12), Ascending); !errors.As(err, &pe) || pe.Kind != NotDivisible {
		t.Errorf("Sort(12 elements) = %v, want NotDivisible", err)
	}
	if _, err := s.Sort(nil, Ascending); !errors.Is(err, ErrInvalidLength) {
		t.Errorf("Sort(nil) = %v, want ErrInvalidLength", err)
	}
}

func TestSorterVerify(t *testing.T) {
	// The mock device does not sort, so verification must catch it.
	s, err := NewSorter(newMockDevice("verify"), WithVerify(true))
	if err != nil {
		t.Fatal(err)
	}
	data := []float32{3, 5, 4, 6, 0, 7, 2, 1}
	var oe *OrderError
	if _, err := s.Sort(data, Ascending); !errors.As(err, &oe) {
		t.Fatalf("Sort() = %v, want *OrderError", err)
	}
}

func TestSorterLaunchFailure(t *testing.T) {
	dev := newMockDevice("fail")
	dev.failAt = 1
	dev.failErr = &LaunchError{Kernel: KernelMerge, Reason: "device lost"}
	s, err := NewSorter(dev)
	if err != nil {
		t.Fatal(err)
	}
	var de *DispatchError
	if _, err := s.Sort(make([]float32, 64), Ascending); !errors.As(err, &de) || de.Index != 1 {
		t.Fatalf("Sort() = %v, want DispatchError at 1", err)
	}
}

func TestPackageSortWithoutDevice(t *testing.T) {
	resetDevice()
	if _, err := Sort(make([]float32, 8), Ascending); !errors.Is(err, ErrNoDevice) {
		t.Errorf("Sort() = %v, want ErrNoDevice", err)
	}
}
