package weights

import (
	"errors"
	"testing"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Options
		wantErr error
	}{
		{"empty", "", Options{}, nil},
		{"pid_l0", "PID-L0", Options{PID: true, L0: true}, nil},
		{"underscores_lowercase", "pid_l0_hlt", Options{PID: true, L0: true, HLT: true}, nil},
		{"everything", "TRK-PID-L0-HLT-BS-interp", Options{TRK: true, PID: true, L0: true, HLT: true, BS: true, Interp: true}, nil},
		{"commas_and_spaces", "PID, TRK  interp", Options{PID: true, TRK: true, Interp: true}, nil},
		{"duplicates", "PID-PID", Options{PID: true}, nil},
		{"hlt_without_l0", "PID-HLT", Options{}, ErrContradiction},
		{"bs_alone", "BS", Options{}, ErrContradiction},
		{"interp_alone", "interp", Options{}, ErrContradiction},
		{"unknown", "PID-SMEAR", Options{}, ErrUnknownToken},
		{"glued", "PIDL0", Options{}, ErrUnknownToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOptions(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseOptions(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOptions(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseOptions(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOptionsString(t *testing.T) {
	o, err := ParseOptions("interp-L0-PID-BS-TRK")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := o.String(), "TRK-PID-L0-BS-interp"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if (Options{}).String() != "" {
		t.Errorf("empty options should render empty")
	}
}

func TestParseToken(t *testing.T) {
	for _, s := range []string{"PID", "pid", " L0 ", "Hlt", "trk", "bs", "INTERP"} {
		if _, err := ParseToken(s); err != nil {
			t.Errorf("ParseToken(%q): %v", s, err)
		}
	}
	if _, err := ParseToken("nope"); !errors.Is(err, ErrUnknownToken) {
		t.Errorf("ParseToken(nope) error = %v", err)
	}
	if TokenBS.IsComponent() || TokenInterp.IsComponent() {
		t.Error("BS and interp must not enable components")
	}
	if !TokenHLT.IsComponent() {
		t.Error("HLT should enable components")
	}
}
