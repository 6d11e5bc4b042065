package worker

// Ready reports whether the worker is polling. It flips to false as soon as
// shutdown begins so load balancers stop routing to a draining process.
func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}
