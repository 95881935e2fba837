// Package pipeline wires the geometry stages together and runs them across
// all configured route-directions.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"trackforge/internal/config"
	"trackforge/internal/export"
	"trackforge/internal/metrics"
	"trackforge/internal/publisher"
	"trackforge/internal/source"
	"trackforge/internal/track"
	"trackforge/internal/wkt"
)

type Pipeline struct {
	src     source.Source
	routes  []config.RouteDef
	tuning  config.Tuning
	workers int
	exp     *export.Exporter
	pub     *publisher.NATSPublisher
	mcol    *metrics.Collector
	runID   string
}

// New assembles a pipeline. Publisher and metrics may be nil; exporting is
// mandatory because the artifacts are the whole point of a run.
func New(src source.Source, routes []config.RouteDef, cfg *config.Config, exp *export.Exporter, pub *publisher.NATSPublisher, mcol *metrics.Collector) *Pipeline {
	return &Pipeline{
		src:     src,
		routes:  routes,
		tuning:  cfg.Tuning,
		workers: cfg.Workers,
		exp:     exp,
		pub:     pub,
		mcol:    mcol,
		runID:   uuid.NewString(),
	}
}

func (p *Pipeline) RunID() string { return p.runID }

// Summary reports the outcome of one batch run.
type Summary struct {
	RunID  string
	Built  int
	Failed int
}

// Run executes the full batch: every route-direction is rebuilt
// independently on the worker pool, then all artifacts are written and the
// rebuilt tracks announced. A failed route aborts only itself.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	stations, err := p.src.Stations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stations: %w", err)
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		tracks []*track.Track
		failed int
	)
	sem := make(chan struct{}, p.workers)
	for _, rd := range p.routes {
		wg.Add(1)
		go func(rd config.RouteDef) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			built, err := p.buildRoute(ctx, rd, stations)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("route %s: %v", rd.ID, err)
				failed++
				if p.mcol != nil {
					p.mcol.TracksFailed.Inc()
				}
				return
			}
			tracks = append(tracks, built...)
			if p.mcol != nil {
				p.mcol.TracksProcessed.Add(float64(len(built)))
			}
		}(rd)
	}
	wg.Wait()

	// Deterministic artifact order; rerunning on unchanged inputs must
	// produce identical output files.
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].ID < tracks[j].ID })

	checksums := make(map[string]string, len(tracks))
	for _, t := range tracks {
		sum, err := p.exp.WriteTrack(t)
		if err != nil {
			return nil, fmt.Errorf("write track %s: %w", t.ID, err)
		}
		checksums[t.ID] = sum
	}
	if err := p.exp.WriteProgress(tracks); err != nil {
		return nil, fmt.Errorf("write progress: %w", err)
	}
	if err := p.exp.WriteManifest(p.runID, tracks, checksums); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	if p.pub != nil {
		now := time.Now().UTC()
		for _, t := range tracks {
			msg := publisher.TrackMessage{
				RunID:       p.runID,
				TrackID:     t.ID,
				Stations:    len(t.Progress),
				Approximate: t.Report.Approximate,
				Progress:    t.Progress,
				UpdatedAt:   now,
			}
			if err := p.pub.PublishTrack(msg); err != nil {
				log.Printf("publish track %s: %v", t.ID, err)
			}
		}
	}

	return &Summary{RunID: p.runID, Built: len(tracks), Failed: failed}, nil
}

// buildRoute rebuilds one route-direction. Branching routes yield one track
// per branch; everything else yields exactly one.
func (p *Pipeline) buildRoute(ctx context.Context, rd config.RouteDef, stations map[string]source.Station) ([]*track.Track, error) {
	raw, err := p.src.Geometry(ctx, rd.ID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	segments, err := wkt.Parse(raw)
	p.observe("parse", start)
	if err != nil {
		return nil, err
	}

	tol := rd.Tolerance
	if tol <= 0 {
		tol = p.tuning.ConnectTolerance
	}

	topo := topologyOf(rd)
	if topo.Kind == track.TopologyBranching {
		return p.buildBranches(rd, topo, segments, stations, tol)
	}

	wps, missing := p.waypoints(rd.Stations, stations)
	if len(wps) < 2 {
		return nil, fmt.Errorf("only %d of %d stations known", len(wps), len(rd.Stations))
	}
	origin, ok := stationCoord(stations, rd.Origin)
	if !ok {
		return nil, fmt.Errorf("unknown origin station %q", rd.Origin)
	}
	dest, ok := stationCoord(stations, rd.Destination)
	if !ok {
		return nil, fmt.Errorf("unknown destination station %q", rd.Destination)
	}

	start = time.Now()
	line, err := track.Assemble(segments, origin, dest, track.AssembleOptions{
		Tolerance:       tol,
		Order:           rd.SegmentOrder,
		Circular:        topo.Kind == track.TopologyCircular,
		BacktrackAngle:  p.tuning.BacktrackAngle,
		BacktrackMaxLen: p.tuning.BacktrackMaxLen,
	})
	p.observe("assemble", start)
	if err != nil {
		return nil, err
	}

	t := p.finishTrack(rd.ID, rd.Name, line, wps, topo.Kind == track.TopologyCircular, false)
	t.Report.Warnings = append(missing, t.Report.Warnings...)
	return []*track.Track{t}, nil
}

// buildBranches rebuilds a trunk-plus-spurs route: each branch is resolved,
// calibrated and parametrized independently over the trunk+branch station
// sequence, reusing the connectivity search between its endpoints.
func (p *Pipeline) buildBranches(rd config.RouteDef, topo track.Topology, segments []orb.LineString, stations map[string]source.Station, tol float64) ([]*track.Track, error) {
	r := track.NewResolver(segments, tol)
	out := make([]*track.Track, 0, len(topo.Branches))
	for _, br := range topo.Branches {
		ids := append(append([]string{}, topo.Trunk...), br.Stations...)
		wps, missing := p.waypoints(ids, stations)
		if len(wps) < 2 {
			return nil, fmt.Errorf("branch %s: only %d of %d stations known", br.Name, len(wps), len(ids))
		}
		origin := wps[0].Coord
		dest := wps[len(wps)-1].Coord

		start := time.Now()
		path := r.FindPath(origin, dest)
		line := r.Materialize(path, origin, dest)
		if !path.Approximate {
			var err error
			line, err = track.Truncate(line, origin, dest)
			if err != nil {
				return nil, fmt.Errorf("branch %s: %w", br.Name, err)
			}
		}
		p.observe("assemble", start)
		if path.Approximate && p.mcol != nil {
			p.mcol.ApproximatePaths.Inc()
		}

		t := p.finishTrack(rd.ID+"/"+br.Name, rd.Name, line, wps, false, path.Approximate)
		t.Report.Warnings = append(missing, t.Report.Warnings...)
		out = append(out, t)
	}
	return out, nil
}

// finishTrack runs calibration, the repair loop and parametrization over an
// assembled polyline.
func (p *Pipeline) finishTrack(id, name string, line orb.LineString, wps []track.Waypoint, circular, approximate bool) *track.Track {
	calOpts := track.CalibrateOptions{
		ExactEps: p.tuning.ExactEpsilon,
		Ceiling:  p.tuning.CalibrationCeiling,
	}
	start := time.Now()
	line, skipped := track.Calibrate(line, wps, calOpts)
	p.observe("calibrate", start)

	kept := dropSkipped(wps, skipped)
	if p.mcol != nil {
		p.mcol.StationsCalibrated.Add(float64(len(kept)))
		p.mcol.StationsSkipped.Add(float64(len(skipped)))
	}

	// Pin the terminals: first waypoint at vertex 0, last at the final
	// vertex, so their progress is exactly 0 and 1. Circular routes are
	// rotated to start and close on the first waypoint instead.
	if len(kept) >= 2 {
		if circular {
			line = track.AlignLoop(line, kept[0].Coord, p.tuning.ExactEpsilon)
		} else {
			line = track.TrimEnds(line, kept[0].Coord, kept[len(kept)-1].Coord, p.tuning.ExactEpsilon)
		}
	}

	ropts := track.RepairOptions{
		WarnAngle:       p.tuning.WarnAngle,
		SevereAngle:     p.tuning.SevereAngle,
		WalkDist:        p.tuning.RepairWalk,
		MaxDisplacement: p.tuning.RepairMaxMove,
	}
	start = time.Now()
	idxs := stationVertices(line, kept, p.tuning.ExactEpsilon)
	anomalies := track.DetectAnomalies(line, idxs, ropts)
	repaired := 0
	if len(anomalies) > 0 {
		line, repaired = track.Repair(line, anomalies, ropts)
	}
	p.observe("repair", start)
	if p.mcol != nil {
		p.mcol.AnomaliesDetected.Add(float64(len(anomalies)))
		p.mcol.AnomaliesRepaired.Add(float64(repaired))
	}

	start = time.Now()
	progress, warnings := track.Parametrize(line, kept, circular, p.tuning.ExactEpsilon)
	p.observe("parametrize", start)
	for _, w := range warnings {
		log.Printf("track %s: %s", id, w)
		if p.mcol != nil {
			p.mcol.MonotonicityWarnings.Inc()
		}
	}
	if approximate && p.mcol != nil {
		p.mcol.ApproximatePaths.Inc()
	}

	return &track.Track{
		ID:       id,
		Name:     name,
		Line:     line,
		Progress: progress,
		Report: track.Report{
			TrackID:           id,
			Approximate:       approximate,
			SkippedStations:   skipped,
			AnomaliesFound:    len(anomalies),
			AnomaliesRepaired: repaired,
			Warnings:          warnings,
		},
	}
}

func (p *Pipeline) observe(stage string, start time.Time) {
	if p.mcol != nil {
		p.mcol.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// waypoints resolves station ids to waypoints in visiting order. Unknown
// stations are tolerated: they are reported and simply omitted from the
// progress map.
func (p *Pipeline) waypoints(ids []string, stations map[string]source.Station) ([]track.Waypoint, []string) {
	wps := make([]track.Waypoint, 0, len(ids))
	var missing []string
	for i, id := range ids {
		st, ok := stations[id]
		if !ok {
			log.Printf("station %s not in station list, omitting", id)
			missing = append(missing, fmt.Sprintf("unknown station %s", id))
			continue
		}
		wps = append(wps, track.Waypoint{
			ID:    st.ID,
			Name:  st.Name,
			Coord: orb.Point{st.Lon, st.Lat},
			Seq:   i,
		})
	}
	return wps, missing
}

func stationCoord(stations map[string]source.Station, id string) (orb.Point, bool) {
	st, ok := stations[id]
	if !ok {
		return orb.Point{}, false
	}
	return orb.Point{st.Lon, st.Lat}, true
}

func dropSkipped(wps []track.Waypoint, skipped []string) []track.Waypoint {
	if len(skipped) == 0 {
		return wps
	}
	drop := make(map[string]bool, len(skipped))
	for _, id := range skipped {
		drop[id] = true
	}
	kept := make([]track.Waypoint, 0, len(wps))
	for _, wp := range wps {
		if drop[wp.ID] {
			continue
		}
		kept = append(kept, wp)
	}
	return kept
}

// stationVertices maps calibrated waypoints back to their vertex indices for
// the anomaly detector.
func stationVertices(line orb.LineString, wps []track.Waypoint, eps float64) []int {
	var idxs []int
	for _, wp := range wps {
		for i, v := range line {
			if dx, dy := v[0]-wp.Coord[0], v[1]-wp.Coord[1]; dx*dx+dy*dy <= eps*eps {
				idxs = append(idxs, i)
				break
			}
		}
	}
	return idxs
}

func topologyOf(rd config.RouteDef) track.Topology {
	switch rd.Topology {
	case "circular":
		return track.Topology{Kind: track.TopologyCircular}
	case "branching":
		branches := make([]track.Branch, 0, len(rd.Branches))
		for _, b := range rd.Branches {
			branches = append(branches, track.Branch{Name: b.Name, Stations: b.Stations})
		}
		return track.Topology{Kind: track.TopologyBranching, Trunk: rd.Stations, Branches: branches}
	default:
		return track.Topology{Kind: track.TopologyLinear}
	}
}
