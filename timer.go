package main

// countdown is the single armed timer of a room. It is owned by the room
// loop: the loop's one-second ticker drives it, so expiry callbacks run
// serialized with client messages and never touch state concurrently.
type countdown struct {
	active    bool
	remaining int
	onExpire  func()
}

// startTimer arms the countdown, replacing any timer already running,
// and broadcasts the new state so clients pick up the fresh duration.
func (r *Room) startTimer(seconds int, onExpire func()) {
	r.timer = countdown{active: true, remaining: seconds, onExpire: onExpire}
	r.state.Timer = seconds
	r.broadcastState()
}

// cancelTimer disarms the countdown. Safe to call when nothing is armed.
func (r *Room) cancelTimer() {
	r.timer = countdown{}
	r.state.Timer = 0
}

// tickTimer runs once per second inside the room loop. At zero the timer
// is disarmed before the expiry callback fires, so a callback that arms
// the next phase's timer never races the old one.
func (r *Room) tickTimer() {
	if !r.timer.active {
		return
	}

	r.timer.remaining--
	r.state.Timer = r.timer.remaining
	r.broadcast(TimerMessage{Type: "timer_tick", Seconds: r.timer.remaining})

	if r.timer.remaining > 0 {
		return
	}

	onExpire := r.timer.onExpire
	r.timer = countdown{}
	onExpire()
}
