package lifecycle

type state int

const (
	stateIdle state = iota
	statePreEmitted
	stateWorking
	stateFailed
	statePostEmitted
	stateDone
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case statePreEmitted:
		return "pre-emitted"
	case stateWorking:
		return "working"
	case stateFailed:
		return "failed"
	case statePostEmitted:
		return "post-emitted"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// allowed lists the legal successors of each state.
var allowed = map[state][]state{
	stateIdle:        {statePreEmitted},
	statePreEmitted:  {stateWorking},
	stateWorking:     {stateFailed, statePostEmitted},
	stateFailed:      {statePostEmitted},
	statePostEmitted: {stateDone},
}

// phase tracks one unit of work through the lifecycle.
type phase struct {
	w           *Wrapper
	destination string
	msg         string
	cur         state
}

func (p *phase) to(next state) {
	for _, s := range allowed[p.cur] {
		if s == next {
			p.w.logger.Debug("lifecycle transition", "msg", p.msg, "from", p.cur.String(), "to", next.String())
			p.cur = next

			return
		}
	}

	p.w.logger.Error("illegal lifecycle transition", "msg", p.msg, "from", p.cur.String(), "to", next.String())
}

func (p *phase) post(data any, err error) Event {
	ev := Event{Status: PostProcessing, OrderData: OrderData{Destination: p.destination, Msg: p.msg, Data: data}}
	if err != nil {
		ev.Error = describe(err)
	}

	return ev
}
