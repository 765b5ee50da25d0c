package schedules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tripwindow/internal/publisher"
	"tripwindow/internal/resolve"
	"tripwindow/internal/trips"
)

// Snapshotter freezes every live trip-array schedule into the history of the
// local today when no row exists yet. It never overwrites and never writes
// past dates.
type Snapshotter struct {
	env
	schedules resolve.ScheduleProvider
	history   HistoryWriter
	interval  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSnapshotter(schedules resolve.ScheduleProvider, history HistoryWriter, interval time.Duration, opts ...Option) *Snapshotter {
	return &Snapshotter{
		env:       newEnv("snapshotter", opts),
		schedules: schedules,
		history:   history,
		interval:  interval,
	}
}

// Start launches a background loop that snapshots immediately and then on
// every interval. A non-positive interval disables it.
func (s *Snapshotter) Start(parent context.Context) {
	if s.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.run(ctx)
			}
		}
	}()
}

func (s *Snapshotter) run(ctx context.Context) {
	if _, err := s.SnapshotNow(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error().Err(err).Msg("history snapshot failed")
	}
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (s *Snapshotter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// SnapshotNow runs one pass and returns how many history rows it inserted.
// A failure on one bus is logged and does not stop the others.
func (s *Snapshotter) SnapshotNow(ctx context.Context) (int, error) {
	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.SnapshotObserve(time.Since(started))
		}
	}()

	list, err := s.schedules.ListSchedules(ctx)
	if err != nil {
		s.countSnapshot("error")
		return 0, fmt.Errorf("list schedules: %w", err)
	}
	today := s.today()
	now := s.now()
	inserted := 0
	for _, sched := range list {
		if len(sched.Trips) == 0 {
			continue
		}
		ok, err := s.history.InsertHistoryIfAbsent(ctx, trips.ScheduleHistory{
			BusID:     sched.BusID,
			Date:      today,
			RouteName: sched.RouteName,
			Trips:     sched.Trips,
			CreatedAt: now,
		})
		if err != nil {
			s.countSnapshot("error")
			s.logger.Warn().Err(err).Str("bus_id", sched.BusID).Str("date", today.String()).Msg("insert history snapshot")
			continue
		}
		if !ok {
			s.countSnapshot("existing")
			continue
		}
		inserted++
		s.countSnapshot("inserted")
		s.logger.Info().Str("bus_id", sched.BusID).Str("date", today.String()).Int("trips", len(sched.Trips)).Msg("snapshotted schedule history")
		s.notify(sched.BusID, today, publisher.ReasonSnapshot, len(sched.Trips))
	}
	return inserted, nil
}

func (s *Snapshotter) countSnapshot(result string) {
	if s.metrics != nil {
		s.metrics.SnapshotInc(result)
	}
}
