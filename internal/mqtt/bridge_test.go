package mqtt

import (
	"io"
	"log/slog"
	"testing"

	"github.com/akhgr1-design/chillerd/internal/plant"
)

type recordingCommands struct {
	capacity []float64
	ambient  []float64
	perf     []perfCall
}

type perfCall struct {
	index  int
	sample plant.PerformanceSample
}

func (r *recordingCommands) UpdateCapacity(pct float64) float64 {
	r.capacity = append(r.capacity, pct)
	return pct
}

func (r *recordingCommands) UpdateAmbient(tempC float64) error {
	r.ambient = append(r.ambient, tempC)
	return nil
}

func (r *recordingCommands) UpdatePerformance(index int, s plant.PerformanceSample) error {
	r.perf = append(r.perf, perfCall{index, s})
	return nil
}

func testBridge(ctl Commands) *Bridge {
	lg := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBridge(nil, Topics{
		Demand:      "chiller/capacity/demand",
		Ambient:     "chiller/ambient/temperature",
		Performance: "chiller/condenser/+/performance",
	}, ctl, lg)
}

func TestDemandAcceptsBareAndJSONPayloads(t *testing.T) {
	rec := &recordingCommands{}
	b := testBridge(rec)

	b.onDemand([]byte("72.5"))
	b.onDemand([]byte(` {"capacityPercent": 31.25} `))
	b.onDemand([]byte(`{"something":"else"}`))
	b.onDemand([]byte("not a number"))

	if len(rec.capacity) != 2 {
		t.Fatalf("capacity calls = %v, want two accepted payloads", rec.capacity)
	}
	if rec.capacity[0] != 72.5 || rec.capacity[1] != 31.25 {
		t.Fatalf("capacity calls = %v", rec.capacity)
	}
}

func TestAmbientPayloadDispatch(t *testing.T) {
	rec := &recordingCommands{}
	b := testBridge(rec)

	b.onAmbient([]byte("-4"))
	b.onAmbient([]byte(`{"temperatureC": 33.1}`))

	if len(rec.ambient) != 2 || rec.ambient[0] != -4 || rec.ambient[1] != 33.1 {
		t.Fatalf("ambient calls = %v", rec.ambient)
	}
}

func TestPerformanceTopicCarriesUnitIndex(t *testing.T) {
	rec := &recordingCommands{}
	b := testBridge(rec)

	b.onPerformance("chiller/condenser/2/performance",
		[]byte(`{"efficiencyRating":0.82,"powerDrawKw":40.5,"coolingCapacityKw":210,"temperatureDeltaC":5.1}`))
	b.onPerformance("chiller/condenser/x/performance", []byte(`{"efficiencyRating":0.9}`))
	b.onPerformance("chiller/condenser/1/status", []byte(`{"efficiencyRating":0.9}`))
	b.onPerformance("chiller/condenser/3/performance", []byte(`{broken`))

	if len(rec.perf) != 1 {
		t.Fatalf("perf calls = %+v, want exactly one accepted sample", rec.perf)
	}
	got := rec.perf[0]
	want := perfCall{index: 2, sample: plant.PerformanceSample{
		EfficiencyRating:  0.82,
		PowerDrawKW:       40.5,
		CoolingCapacityKW: 210,
		TemperatureDeltaC: 5.1,
	}}
	if got != want {
		t.Fatalf("perf call = %+v, want %+v", got, want)
	}
}

func TestIndexFromTopic(t *testing.T) {
	filter := "chiller/condenser/+/performance"
	cases := []struct {
		topic string
		index int
		ok    bool
	}{
		{"chiller/condenser/0/performance", 0, true},
		{"chiller/condenser/11/performance", 11, true},
		{"chiller/condenser/performance", 0, false},
		{"chiller/compressor/1/performance", 0, false},
		{"chiller/condenser/1/performance/extra", 0, false},
		{"chiller/condenser/-2/performance", -2, true},
	}
	for _, tc := range cases {
		index, ok := indexFromTopic(filter, tc.topic)
		if ok != tc.ok || (ok && index != tc.index) {
			t.Errorf("indexFromTopic(%q) = (%d, %v), want (%d, %v)", tc.topic, index, ok, tc.index, tc.ok)
		}
	}
}

func TestParseNumberPayloadErrors(t *testing.T) {
	for _, payload := range []string{"", "nan?", `{"capacityPercent":"high"}`, `[1,2]`} {
		if _, err := parseNumberPayload([]byte(payload), "capacityPercent"); err == nil {
			t.Errorf("parseNumberPayload(%q) accepted, want error", payload)
		}
	}
}
