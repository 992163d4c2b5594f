package decomp

import "testing"

func TestFindNproc(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		minPerProc int
		evenSplit  bool
		want       int
	}{
		{"below minimum is serial", 10, 25, false, 1},
		{"exact multiple", 100, 25, false, 4},
		{"truncates", 110, 25, false, 4},
		{"even split picks a divisor", 90, 25, true, 3},
		{"prime count falls back to serial", 97, 25, true, 1},
		{"even split exact", 100, 25, true, 4},
		{"zero min uses default", 100, 0, false, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindNproc(tt.n, tt.minPerProc, tt.evenSplit); got != tt.want {
				t.Errorf("FindNproc(%d, %d, %v) = %d, want %d", tt.n, tt.minPerProc, tt.evenSplit, got, tt.want)
			}
		})
	}
}

func TestDecompose(t *testing.T) {
	nx, ny := Decompose(201, 101, Options{})
	if nx != 8 || ny != 4 {
		t.Errorf("Decompose(201, 101) = (%d, %d), want (8, 4)", nx, ny)
	}
}

func TestDecompose_SerialSentinel(t *testing.T) {
	nx, ny := Decompose(20, 20, Options{})
	if nx != -1 || ny != -1 {
		t.Errorf("serial decomposition = (%d, %d), want (-1, -1)", nx, ny)
	}
}

func TestDecompose_Caps(t *testing.T) {
	nx, ny := Decompose(201, 101, Options{MaxNX: 4, MaxNY: 2})
	if nx != 4 || ny != 2 {
		t.Errorf("capped decomposition = (%d, %d), want (4, 2)", nx, ny)
	}
}

func TestSlots(t *testing.T) {
	if got := Slots(2, 3); got != 6 {
		t.Errorf("Slots(2, 3) = %d, want 6", got)
	}
	if got := Slots(-1, -1); got != 1 {
		t.Errorf("Slots(-1, -1) = %d, want 1", got)
	}
}
