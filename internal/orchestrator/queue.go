package orchestrator

import "context"

// Request carries one utterance to Serve. Reply must be buffered or have a
// reader waiting; Serve gives up on the send when ctx ends.
type Request struct {
	Utterance string
	Reply     chan Outcome
}

// Serve consumes requests in arrival order until ctx is done or requests is closed.
func (o *Orchestrator) Serve(ctx context.Context, requests <-chan Request) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-requests:
			if !ok {
				return nil
			}
			out := o.HandleTurn(ctx, req.Utterance)
			if req.Reply == nil {
				continue
			}
			select {
			case req.Reply <- out:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Submit sends an utterance to a Serve loop and waits for its outcome.
func Submit(ctx context.Context, requests chan<- Request, utterance string) (Outcome, error) {
	reply := make(chan Outcome, 1)
	select {
	case requests <- Request{Utterance: utterance, Reply: reply}:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	select {
	case out := <-reply:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}
