package workload

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/GoSim-25-26J-441/resilience-core/internal/graph"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/models"
	"github.com/GoSim-25-26J-441/resilience-core/pkg/utils"
)

func socialGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.New([]graph.Edge{
		{Caller: "nginx-web-server", Callee: "compose-post-service"},
		{Caller: "nginx-web-server", Callee: "home-timeline-service"},
		{Caller: "compose-post-service", Callee: "text-service"},
		{Caller: "compose-post-service", Callee: "media-service"},
		{Caller: "text-service", Callee: "url-shorten-service"},
		{Caller: "text-service", Callee: "user-mention-service"},
		{Caller: "home-timeline-service", Callee: "post-storage-service"},
	})
	if err != nil {
		t.Fatalf("graph.New: %v", err)
	}
	return g
}

func TestNewCatalog(t *testing.T) {
	g := socialGraph(t)
	c, err := NewCatalog(g, []EndpointSpec{
		{Name: "home-timeline", Weight: 0.6, Targets: []string{"home-timeline-service", "post-storage-service"}},
		{Name: "compose-post", Weight: 0.4, Targets: []string{"compose-post-service", "text-service", "text-service"}},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 endpoints, got %d", c.Len())
	}
	if !reflect.DeepEqual(c.Names(), []string{"home-timeline", "compose-post"}) {
		t.Fatalf("catalog order must follow input, got %v", c.Names())
	}
	if c.Endpoint(1).Targets() != 2 {
		t.Fatalf("duplicate targets must collapse, got %d", c.Endpoint(1).Targets())
	}
	if math.Abs(c.TotalWeight()-1) > 1e-12 {
		t.Fatalf("unexpected total weight %v", c.TotalWeight())
	}
	if !reflect.DeepEqual(c.Weights(), []float64{0.6, 0.4}) {
		t.Fatalf("unexpected weights %v", c.Weights())
	}
}

func TestNewCatalogValidation(t *testing.T) {
	g := socialGraph(t)
	tests := []struct {
		name  string
		specs []EndpointSpec
	}{
		{"no endpoints", nil},
		{"empty name", []EndpointSpec{{Weight: 1, Targets: []string{"text-service"}}}},
		{"duplicate name", []EndpointSpec{
			{Name: "a", Weight: 0.5, Targets: []string{"text-service"}},
			{Name: "a", Weight: 0.5, Targets: []string{"media-service"}},
		}},
		{"empty targets", []EndpointSpec{{Name: "a", Weight: 1}}},
		{"empty targets with only extras", []EndpointSpec{{Name: "a", Weight: 1, Extras: []Extra{{Service: "media-service", Probability: 1}}}}},
		{"negative weight", []EndpointSpec{{Name: "a", Weight: -0.1, Targets: []string{"text-service"}}}},
		{"NaN weight", []EndpointSpec{{Name: "a", Weight: math.NaN(), Targets: []string{"text-service"}}}},
		{"unknown target", []EndpointSpec{{Name: "a", Weight: 1, Targets: []string{"ghost"}}}},
		{"unknown extra", []EndpointSpec{{Name: "a", Weight: 1, Targets: []string{"text-service"}, Extras: []Extra{{Service: "ghost", Probability: 0.5}}}}},
		{"extra probability above one", []EndpointSpec{{Name: "a", Weight: 1, Targets: []string{"text-service"}, Extras: []Extra{{Service: "media-service", Probability: 1.2}}}}},
		{"extra probability negative", []EndpointSpec{{Name: "a", Weight: 1, Targets: []string{"text-service"}, Extras: []Extra{{Service: "media-service", Probability: -0.2}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(g, tt.specs)
			if !errors.Is(err, models.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestIncludeDescendants(t *testing.T) {
	g := socialGraph(t)
	c, err := NewCatalog(g, []EndpointSpec{
		{Name: "compose-post", Weight: 1, Targets: []string{"compose-post-service"}, IncludeDescendants: true},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	got := c.ResolveNames(0, utils.NewRandSource(1))
	want := []string{"compose-post-service", "text-service", "media-service", "url-shorten-service", "user-mention-service"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestResolveExtras(t *testing.T) {
	g := socialGraph(t)
	c, err := NewCatalog(g, []EndpointSpec{{
		Name:    "compose-post",
		Weight:  1,
		Targets: []string{"compose-post-service"},
		Extras: []Extra{
			{Service: "media-service", Probability: 0.8},
			{Service: "url-shorten-service", Probability: 0},
			{Service: "user-mention-service", Probability: 1},
		},
	}})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	const n = 20000
	rng := utils.NewRandSource(16)
	media := 0
	var buf []int
	for i := 0; i < n; i++ {
		buf = c.Resolve(0, rng, buf[:0])
		hasMedia, hasURL, hasMention := false, false, false
		for _, node := range buf {
			switch g.Name(node) {
			case "media-service":
				hasMedia = true
			case "url-shorten-service":
				hasURL = true
			case "user-mention-service":
				hasMention = true
			}
		}
		if hasURL {
			t.Fatalf("probability 0 extra must never be required")
		}
		if !hasMention {
			t.Fatalf("probability 1 extra must always be required")
		}
		if g.Name(buf[0]) != "compose-post-service" {
			t.Fatalf("fixed targets come first")
		}
		if hasMedia {
			media++
		}
	}
	if freq := float64(media) / n; math.Abs(freq-0.8) > 0.015 {
		t.Fatalf("expected media in ~80%% of trials, got %v", freq)
	}
}

func TestResolveConsumesOneDrawPerExtra(t *testing.T) {
	g := socialGraph(t)
	c, err := NewCatalog(g, []EndpointSpec{{
		Name:    "compose-post",
		Weight:  1,
		Targets: []string{"compose-post-service", "media-service"},
		Extras: []Extra{
			{Service: "media-service", Probability: 0.5},
			{Service: "text-service", Probability: 0.5},
		},
	}})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	a := utils.NewRandSource(77)
	b := utils.NewRandSource(77)
	c.Resolve(0, a, nil)
	b.Float64()
	b.Float64()
	if a.Float64() != b.Float64() {
		t.Fatalf("Resolve must consume exactly one draw per extra")
	}
}
