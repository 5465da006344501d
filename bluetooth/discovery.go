// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bluetooth

// Discovery session bookkeeping. The daemon runs at most one scan per
// adapter, so overlapping consumers are reference counted: the first session
// starts the scan, the last one stops it, and every session's filter is
// folded into the one effective filter the daemon applies.
//
// Only one start/stop request may be in flight at a time. While one is
// pending, additional session adds queue up FIFO and replay after the
// pending request completes; a session remove during that window fails with
// ErrConflictingRequest instead of queueing.

type discoveryState struct {
	sessions      []*DiscoveryFilter
	pending       bool
	queue         []*discoveryRequest
	currentFilter *DiscoveryFilter
}

type discoveryRequest struct {
	filter *DiscoveryFilter
	done   func(err error)
}

// DiscoverySessionCount reports the number of acknowledged sessions.
func (a *Adapter) DiscoverySessionCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.discovery.sessions)
}

// AddDiscoverySession requests one more discovery session with the given
// filter (nil means unfiltered). done is invoked exactly once, possibly
// before AddDiscoverySession returns when the request fails locally.
func (a *Adapter) AddDiscoverySession(filter *DiscoveryFilter, done func(err error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addDiscoverySessionLocked(&discoveryRequest{
		filter: filter.Copy(),
		done:   ensureDone(done),
	})
}

func (a *Adapter) addDiscoverySessionLocked(req *discoveryRequest) {
	if a.path == "" {
		req.done(ErrAdapterNotPresent)
		return
	}
	ds := &a.discovery
	if ds.pending {
		logger.Debug("discovery request in flight, queueing session add")
		ds.queue = append(ds.queue, req)
		return
	}
	if len(ds.sessions) > 0 {
		// already scanning; just loosen the effective filter
		merged := mergeSessionFilters(append(append([]*DiscoveryFilter(nil), ds.sessions...), req.filter))
		a.setDiscoveryFilterLocked(merged, func(err error) {
			if err != nil {
				req.done(err)
			} else {
				ds.sessions = append(ds.sessions, req.filter)
				req.done(nil)
			}
			a.drainDiscoveryQueueLocked()
		})
		return
	}
	ds.pending = true
	if req.filter != nil {
		a.setDiscoveryFilterLocked(req.filter.Copy(), func(err error) {
			if err != nil {
				ds.pending = false
				req.done(err)
				a.drainDiscoveryQueueLocked()
				return
			}
			a.startDiscoveryLocked(req)
		})
		return
	}
	ds.currentFilter = nil
	a.startDiscoveryLocked(req)
}

// RemoveDiscoverySession releases one discovery session. The filter must be
// the one the session was added with; with several sessions active the scan
// keeps running under the recomputed merged filter, and only the last
// session's removal stops the scan.
func (a *Adapter) RemoveDiscoverySession(filter *DiscoveryFilter, done func(err error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	req := &discoveryRequest{filter: filter.Copy(), done: ensureDone(done)}
	if a.path == "" {
		req.done(ErrAdapterNotPresent)
		return
	}
	ds := &a.discovery
	if len(ds.sessions) > 1 {
		a.dropSessionFilterLocked(req.filter)
		merged := mergeSessionFilters(ds.sessions)
		a.setDiscoveryFilterLocked(merged, func(err error) {
			req.done(err)
			a.drainDiscoveryQueueLocked()
		})
		return
	}
	if ds.pending {
		// a stop never queues behind an outstanding request
		req.done(ErrConflictingRequest)
		return
	}
	if len(ds.sessions) == 0 {
		req.done(ErrNoActiveSession)
		return
	}
	ds.pending = true
	gen := a.generation
	a.client.StopDiscovery(a.path, func(derr *DaemonError) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.onStopDiscovery(gen, req, derr)
	})
}

func (a *Adapter) startDiscoveryLocked(req *discoveryRequest) {
	gen := a.generation
	a.client.StartDiscovery(a.path, func(derr *DaemonError) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.onStartDiscovery(gen, req, derr)
	})
}

func (a *Adapter) onStartDiscovery(gen uint64, req *discoveryRequest, derr *DaemonError) {
	if a.generation != gen {
		req.done(ErrAdapterRemoved)
		return
	}
	ds := &a.discovery
	ds.pending = false
	switch {
	case derr == nil:
		ds.sessions = append(ds.sessions, req.filter)
		req.done(nil)
	case derr.Outcome() == OutcomeInProgress && a.discovering:
		// the daemon is scanning already, e.g. we lost track across a
		// discovering flap; adopt the running scan
		logger.Debug("discovery already in progress, adopting running scan")
		ds.sessions = append(ds.sessions, req.filter)
		req.done(nil)
	default:
		logger.Warningf("failed to start discovery: %v", derr)
		req.done(wrapDaemonError("start discovery", derr))
	}
	a.drainDiscoveryQueueLocked()
}

func (a *Adapter) onStopDiscovery(gen uint64, req *discoveryRequest, derr *DaemonError) {
	if a.generation != gen {
		req.done(ErrAdapterRemoved)
		return
	}
	ds := &a.discovery
	ds.pending = false
	if derr == nil {
		ds.sessions = nil
		ds.currentFilter = nil
		req.done(nil)
	} else {
		logger.Warningf("failed to stop discovery: %v", derr)
		req.done(wrapDaemonError("stop discovery", derr))
	}
	a.drainDiscoveryQueueLocked()
}

// setDiscoveryFilterLocked pushes filter to the daemon unless it is
// structurally identical to what the daemon already has. done runs with the
// state lock held; err is nil, a wrapped daemon error, or ErrAdapterRemoved.
func (a *Adapter) setDiscoveryFilterLocked(filter *DiscoveryFilter, done func(err error)) {
	ds := &a.discovery
	if ds.currentFilter.Equal(filter) {
		done(nil)
		return
	}
	ds.currentFilter = filter
	gen := a.generation
	a.client.SetDiscoveryFilter(a.path, filter.daemonProps(), func(derr *DaemonError) {
		a.mu.Lock()
		defer a.mu.Unlock()
		if a.generation != gen {
			done(ErrAdapterRemoved)
			return
		}
		if derr != nil {
			logger.Warningf("failed to set discovery filter: %v", derr)
			done(wrapDaemonError("set discovery filter", derr))
			return
		}
		done(nil)
	})
}

func (a *Adapter) dropSessionFilterLocked(filter *DiscoveryFilter) {
	ds := &a.discovery
	for i, f := range ds.sessions {
		if f.Equal(filter) {
			ds.sessions = append(ds.sessions[:i], ds.sessions[i+1:]...)
			return
		}
	}
	// no exact match; drop the newest session so the count stays honest
	logger.Warning("removing discovery session with unknown filter")
	ds.sessions = ds.sessions[:len(ds.sessions)-1]
}

// drainDiscoveryQueueLocked replays queued session adds in arrival order,
// stopping as soon as a replay leaves another request pending.
func (a *Adapter) drainDiscoveryQueueLocked() {
	ds := &a.discovery
	for len(ds.queue) > 0 && !ds.pending {
		req := ds.queue[0]
		ds.queue = ds.queue[1:]
		logger.Debug("replaying queued discovery request")
		a.addDiscoverySessionLocked(req)
	}
}

// discoveringChangedLocked folds the daemon's Discovering flag in. If the
// daemon stopped scanning on its own while we still count sessions and have
// nothing in flight, those sessions are dead; reset so the next add starts
// from scratch.
func (a *Adapter) discoveringChangedLocked(discovering bool) {
	ds := &a.discovery
	if !discovering && !ds.pending && len(ds.sessions) > 0 {
		logger.Debug("daemon stopped discovery on its own, resetting sessions")
		ds.sessions = nil
		ds.currentFilter = nil
	}
	if discovering == a.discovering {
		return
	}
	a.discovering = discovering
	a.notifyLocked(func(o Observer) { o.AdapterDiscoveringChanged(discovering) })
}

func (a *Adapter) resetDiscoveryLocked() {
	ds := &a.discovery
	queue := ds.queue
	ds.queue = nil
	ds.sessions = nil
	ds.pending = false
	ds.currentFilter = nil
	for _, req := range queue {
		req.done(ErrAdapterRemoved)
	}
}
