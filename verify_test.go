package bsort

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"
)

func TestVerify(t *testing.T) {
	tests := []struct {
		name string
		data []float32
		dir  Direction
		idx  int // -1 when ordered
	}{
		{"empty", nil, Ascending, -1},
		{"single", []float32{1}, Descending, -1},
		{"ascending", []float32{0, 1, 1, 2, 7}, Ascending, -1},
		{"descending", []float32{7, 2, 1, 1, 0}, Descending, -1},
		{"ascending broken", []float32{0, 1, 3, 2, 7}, Ascending, 3},
		{"descending broken", []float32{7, 2, 3, 1}, Descending, 2},
		{"wrong direction", []float32{0, 1, 2}, Descending, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.data, tt.dir)
			if tt.idx < 0 {
				if err != nil {
					t.Fatalf("Verify() = %v, want nil", err)
				}
				return
			}
			var oe *OrderError
			if !errors.As(err, &oe) {
				t.Fatalf("Verify() = %v, want *OrderError", err)
			}
			if oe.Index != tt.idx {
				t.Errorf("Index = %d, want %d", oe.Index, tt.idx)
			}
			if oe.Prev != tt.data[tt.idx-1] || oe.Next != tt.data[tt.idx] {
				t.Errorf("Prev, Next = %v, %v", oe.Prev, oe.Next)
			}
		})
	}
}

func TestVerifyLarge(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	data := make([]float32, 1<<16)
	for i := range data {
		data[i] = r.Float32()
	}
	slices.Sort(data)
	if err := Verify(data, Ascending); err != nil {
		t.Fatalf("Verify(sorted) = %v", err)
	}

	data[40000], data[40001] = data[40001]+1, data[40000]
	var oe *OrderError
	if err := Verify(data, Ascending); !errors.As(err, &oe) || oe.Index != 40001 {
		t.Fatalf("Verify(broken) = %v, want order error at 40001", err)
	}
}
