package ordna

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/tstromberg/ordna/pkg/geocode"
)

// Organize runs the full pipeline: scan, resolve, plan, then execute,
// report, or preview depending on the mode. Per-file failures are
// logged and counted; only setup problems return an error.
func Organize(ctx context.Context, c *Config) (*Result, error) {
	ex := NewExtractor(c.NoHEIF)
	defer ex.Close()

	cache, err := geocode.Load(c.CacheFile)
	if err != nil {
		klog.Warningf("starting with an empty geocode cache: %v", err)
	}

	countries := geocode.NewResolver(cache, geocode.NewClient(c.GeocoderURL, c.UserAgent))
	return organize(ctx, c, ex, countries, cache)
}

// organize is Organize with its collaborators already constructed.
func organize(ctx context.Context, c *Config, ex Extractor, countries *geocode.Resolver, cache *geocode.Cache) (*Result, error) {
	// Geocoding progress is flushed even when a later step fails.
	defer func() {
		if err := cache.Save(c.CacheFile); err != nil {
			klog.Warningf("cache save failed: %v", err)
		}
	}()

	recs, err := Scan(c.SrcDir)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(recs) == 0 {
		klog.Infof("no candidate files under %s", c.SrcDir)
		return &Result{}, nil
	}

	klog.Infof("planning %d files from %s", len(recs), c.SrcDir)
	planner := NewPlanner(c.DstDir, c.TwoLevel, c.Action())
	res := &Result{}

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		meta := ex.Extract(rec.Path)
		rec.Taken, rec.Coord = Resolve(meta, rec.Mtime)

		country := ""
		if !c.TwoLevel && rec.Coord != nil {
			country = countries.Country(ctx, rec.Coord.Lat, rec.Coord.Lon)
		}

		res.Decisions = append(res.Decisions, planner.Plan(rec, country))
	}

	klog.Infof("planned operations: %d files", len(res.Decisions))

	switch {
	case c.ReportOnly:
		if err := WriteReport(c.ReportFile, res.Decisions); err != nil {
			return res, fmt.Errorf("report: %w", err)
		}
		klog.Infof("report written to %s", c.ReportFile)
		return res, nil
	case c.DryRun:
		PrintPreview(res.Decisions)
		return res, nil
	}

	for _, d := range res.Decisions {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := Execute(d, c.PreserveCtime); err != nil {
			d.Err = err
			res.Failed++
			klog.Warningf("%s: %v", d.Source, err)
			continue
		}
		res.Transferred++
	}

	klog.Infof("done: %d transferred, %d failed", res.Transferred, res.Failed)
	if samples := failureSamples(res.Decisions, sampleFailureLimit); len(samples) > 0 {
		klog.Infof("sample failures:")
		for _, s := range samples {
			klog.Infof(" - %s", s)
		}
	}
	return res, nil
}

// sampleFailureLimit caps how many failed files the summary lists.
const sampleFailureLimit = 10

// failureSamples describes the first failed decisions, up to limit.
func failureSamples(ds []*PlacementDecision, limit int) []string {
	out := []string{}
	for _, d := range ds {
		if d.Err == nil {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %v", d.Source, d.Err))
		if len(out) == limit {
			break
		}
	}
	return out
}
