// Package main generates delivery planning problems in the planilp text
// format, plus a manifest of the parameters used.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/elektrokombinacija/planilp/internal/instances"
	"github.com/elektrokombinacija/planilp/internal/loader"
)

// Manifest records what was generated.
type Manifest struct {
	Generated string                     `json:"generated"`
	Instances []instances.DeliveryParams `json:"instances"`
}

// ringHorizon returns a horizon that always admits a plan: fetch one bag
// for each location in turn and walk back to the warehouse.
func ringHorizon(locations int) int {
	h := 0
	for i := 1; i < locations; i++ {
		d := i
		if locations-i < d {
			d = locations - i
		}
		h += 2*d + 2
	}
	return h
}

func write(dir string, p instances.DeliveryParams) error {
	prob, err := p.Build()
	if err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, prob.Name+".txt"))
	if err != nil {
		return err
	}
	if err := loader.Format(f, prob); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	seed := flag.Int64("seed", 42, "Random seed for road chords")
	locations := flag.Int("locations", 5, "Number of locations on the ring")
	bags := flag.Int("bags", 2, "Number of bags")
	chords := flag.Int("chords", 0, "Extra random roads")
	horizon := flag.Int("horizon", 0, "Horizon (0 = a bound that always admits a plan)")
	minimize := flag.Bool("minimize", false, "Emit a cost objective")
	noIdle := flag.Bool("no-idle", false, "Forbid idle steps")
	outputDir := flag.String("output", "testdata", "Output directory")
	scalingMode := flag.Bool("scaling", false, "Generate the scaling suite (3, 5, 8, 12, 16 locations)")

	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	var params []instances.DeliveryParams
	if *scalingMode {
		for _, n := range []int{3, 5, 8, 12, 16} {
			params = append(params, instances.DeliveryParams{
				Seed:      *seed,
				Locations: n,
				Bags:      max(1, n/3),
				Chords:    n / 4,
				Horizon:   ringHorizon(n),
				Minimize:  *minimize,
				NoIdle:    *noIdle,
			})
		}
	} else {
		h := *horizon
		if h == 0 {
			h = ringHorizon(*locations)
		}
		params = append(params, instances.DeliveryParams{
			Seed:      *seed,
			Locations: *locations,
			Bags:      *bags,
			Chords:    *chords,
			Horizon:   h,
			Minimize:  *minimize,
			NoIdle:    *noIdle,
		})
	}

	manifest := Manifest{Generated: time.Now().UTC().Format(time.RFC3339)}
	for _, p := range params {
		if err := write(*outputDir, p); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing instance (%d locations): %v\n", p.Locations, err)
			continue
		}
		manifest.Instances = append(manifest.Instances, p)
		fmt.Printf("Generated: delivery-l%d-b%d-s%d (%d roads, horizon %d)\n",
			p.Locations, p.Bags, p.Seed, len(p.Roads()), p.Horizon)
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling manifest: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(filepath.Join(*outputDir, "manifest.json"), data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing manifest: %v\n", err)
		os.Exit(1)
	}
}
