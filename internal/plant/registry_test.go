package plant

import (
	"errors"
	"testing"
	"time"
)

type fakeSource struct {
	compressors  int
	condensers   int
	disabledComp map[int]bool
	disabledCond map[int]bool
}

func (f fakeSource) InstalledCount(k Kind) int {
	if k == KindCompressor {
		return f.compressors
	}
	return f.condensers
}

func (f fakeSource) Installed(k Kind, index int) bool {
	return index < f.InstalledCount(k)
}

func (f fakeSource) Enabled(k Kind, index int) bool {
	if k == KindCompressor {
		return !f.disabledComp[index]
	}
	return !f.disabledCond[index]
}

func (f fakeSource) Setpoints() (float64, float64, float64) { return 6.5, 12.0, 1.5 }

func TestNewRegistryDefaults(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	r := NewRegistry(now, 180*24*time.Hour)

	for i := range r.Compressors {
		u := &r.Compressors[i]
		if u.Kind != KindCompressor || u.Index != i {
			t.Fatalf("compressor %d mislabelled: kind=%v index=%d", i, u.Kind, u.Index)
		}
		if u.Mode != ModeAuto {
			t.Errorf("compressor %d mode = %v, want auto", i, u.Mode)
		}
	}
	for i := range r.Condensers {
		c := &r.Condensers[i]
		if c.Weights != DefaultWeights() {
			t.Errorf("condenser %d weights = %+v, want factory defaults", i, c.Weights)
		}
		if c.AmbientComp != 1.0 {
			t.Errorf("condenser %d ambient comp = %v, want 1.0", i, c.AmbientComp)
		}
		if c.Maintenance.State != MaintOk {
			t.Errorf("condenser %d maintenance = %v, want ok", i, c.Maintenance.State)
		}
		if got, want := c.Maintenance.NextDue, now.Add(180*24*time.Hour); !got.Equal(want) {
			t.Errorf("condenser %d next due = %v, want %v", i, got, want)
		}
	}
}

func TestUnitBounds(t *testing.T) {
	r := NewRegistry(time.Now(), time.Hour)
	if _, err := r.Unit(KindCompressor, MaxCompressors); !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("compressor out of range: err = %v, want ErrUnknownUnit", err)
	}
	if _, err := r.Unit(KindCondenser, -1); !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("negative index: err = %v, want ErrUnknownUnit", err)
	}
	if _, err := r.Condenser(MaxCondensers); !errors.Is(err, ErrUnknownUnit) {
		t.Errorf("condenser out of range: err = %v, want ErrUnknownUnit", err)
	}
	u, err := r.Unit(KindCondenser, 2)
	if err != nil {
		t.Fatalf("condenser 2: %v", err)
	}
	if u != &r.Condensers[2].UnitState {
		t.Errorf("condenser unit pointer does not alias the registry record")
	}
}

func TestRefreshAvailability(t *testing.T) {
	r := NewRegistry(time.Now(), time.Hour)
	src := fakeSource{
		compressors:  6,
		condensers:   3,
		disabledComp: map[int]bool{1: true},
	}
	r.Refresh(src)

	if got := r.AvailableCount(KindCompressor); got != 5 {
		t.Errorf("available compressors = %d, want 5 (6 installed, 1 disabled)", got)
	}
	if got := r.AvailableCount(KindCondenser); got != 3 {
		t.Errorf("available condensers = %d, want 3", got)
	}
	if r.Compressors[1].Available {
		t.Errorf("disabled compressor 1 reported available")
	}
	if r.Compressors[6].Available || r.Compressors[7].Available {
		t.Errorf("uninstalled compressor banks reported available")
	}
}

func TestStartStopBookkeeping(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	u := UnitState{Kind: KindCompressor, Index: 0, Mode: ModeAuto}

	u.StartAt(now)
	if !u.Running || !u.RelayOn {
		t.Fatalf("after start: running=%v relay=%v, want both true", u.Running, u.RelayOn)
	}
	if u.StartCycles != 1 {
		t.Errorf("start cycles = %d, want 1", u.StartCycles)
	}
	if !u.StartedAt.Equal(now) {
		t.Errorf("started at = %v, want %v", u.StartedAt, now)
	}

	stop := now.Add(150 * time.Second)
	u.StopAt(stop)
	if u.Running || u.RelayOn {
		t.Fatalf("after stop: running=%v relay=%v, want both false", u.Running, u.RelayOn)
	}
	if u.RuntimeMinutes != 2 {
		t.Errorf("runtime = %d min after 150s run, want 2 whole minutes", u.RuntimeMinutes)
	}
	if !u.StoppedAt.Equal(stop) {
		t.Errorf("stopped at = %v, want %v", u.StoppedAt, stop)
	}
}

func TestAccrueWholeMinutes(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(now, time.Hour)
	r.Compressors[0].StartAt(now)
	r.Condensers[1].StartAt(now)

	r.Accrue(now.Add(59 * time.Second))
	if r.Compressors[0].RuntimeMinutes != 0 {
		t.Errorf("runtime after 59s = %d, want 0", r.Compressors[0].RuntimeMinutes)
	}

	r.Accrue(now.Add(5*time.Minute + 30*time.Second))
	if r.Compressors[0].RuntimeMinutes != 5 {
		t.Errorf("compressor runtime after 5m30s = %d, want 5", r.Compressors[0].RuntimeMinutes)
	}
	if r.Condensers[1].RuntimeMinutes != 5 {
		t.Errorf("condenser runtime after 5m30s = %d, want 5", r.Condensers[1].RuntimeMinutes)
	}
	if r.Compressors[2].RuntimeMinutes != 0 {
		t.Errorf("idle bank accrued runtime")
	}
}

func TestRunningCount(t *testing.T) {
	now := time.Now()
	r := NewRegistry(now, time.Hour)
	r.Compressors[0].StartAt(now)
	r.Compressors[3].StartAt(now)
	r.Condensers[0].StartAt(now)

	if got := r.RunningCount(KindCompressor); got != 2 {
		t.Errorf("running compressors = %d, want 2", got)
	}
	if got := r.RunningCount(KindCondenser); got != 1 {
		t.Errorf("running condensers = %d, want 1", got)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("compressor"); err != nil || k != KindCompressor {
		t.Errorf("ParseKind(compressor) = %v, %v", k, err)
	}
	if k, err := ParseKind("condensers"); err != nil || k != KindCondenser {
		t.Errorf("ParseKind(condensers) = %v, %v", k, err)
	}
	if _, err := ParseKind("pump"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("ParseKind(pump) err = %v, want ErrUnknownKind", err)
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
	}{
		{"auto", ModeAuto},
		{"manual_on", ModeManualOn},
		{"manual_off", ModeManualOff},
		{"disabled", ModeDisabled},
		{"fault", ModeFault},
	}
	for _, c := range cases {
		got, err := ParseMode(c.in)
		if err != nil || got != c.want {
			t.Errorf("ParseMode(%q) = %v, %v; want %v", c.in, got, err, c.want)
		}
	}
	if _, err := ParseMode("eco"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("ParseMode(eco) err = %v, want ErrUnknownMode", err)
	}
}
