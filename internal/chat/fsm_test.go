package chat

import "testing"

func TestApplyDeliveryEventHappyPath(t *testing.T) {
	t.Parallel()

	state := StateQueued

	r := ApplyDeliveryEvent(state, EventGatePassed)
	if r.NewState != StateSending || len(r.Actions) != 1 || r.Actions[0] != ActionTransmit {
		t.Fatalf("Queued+GatePassed = %+v, want Sending/[Transmit]", r)
	}
	state = r.NewState

	r = ApplyDeliveryEvent(state, EventRadioAccepted)
	if r.NewState != StateAwaitingAck {
		t.Fatalf("Sending+RadioAccepted = %+v, want AwaitingAck", r)
	}
	state = r.NewState

	r = ApplyDeliveryEvent(state, EventAckReceived)
	if r.NewState != StateDelivered || len(r.Actions) != 1 || r.Actions[0] != ActionMarkDelivered {
		t.Fatalf("AwaitingAck+AckReceived = %+v, want Delivered/[MarkDelivered]", r)
	}
}

func TestApplyDeliveryEventRadioRefusedReturnsToQueued(t *testing.T) {
	t.Parallel()

	r := ApplyDeliveryEvent(StateSending, EventRadioRefused)
	if r.NewState != StateQueued {
		t.Fatalf("Sending+RadioRefused = %+v, want Queued", r)
	}
}

func TestApplyDeliveryEventDiscoveryEscalationLoop(t *testing.T) {
	t.Parallel()

	r := ApplyDeliveryEvent(StateAwaitingAck, EventDiscoveryEscalated)
	if r.NewState != StateEscalatedDiscovery || r.Actions[0] != ActionBroadcastDiscovery {
		t.Fatalf("AwaitingAck+DiscoveryEscalated = %+v", r)
	}

	r = ApplyDeliveryEvent(r.NewState, EventGatePassed)
	if r.NewState != StateAwaitingAck || r.Actions[0] != ActionTransmit {
		t.Fatalf("EscalatedDiscovery+GatePassed = %+v", r)
	}

	r = ApplyDeliveryEvent(r.NewState, EventAckReceived)
	if r.NewState != StateDelivered {
		t.Fatalf("AwaitingAck(after escalation)+AckReceived = %+v", r)
	}
}

func TestApplyDeliveryEventAttemptsExhausted(t *testing.T) {
	t.Parallel()

	r := ApplyDeliveryEvent(StateAwaitingAck, EventAttemptsExhausted)
	if r.NewState != StateFailed || r.Actions[0] != ActionMarkFailed {
		t.Fatalf("AwaitingAck+AttemptsExhausted = %+v, want Failed/[MarkFailed]", r)
	}
}

func TestApplyDeliveryEventUnlistedPairIsNoop(t *testing.T) {
	t.Parallel()

	r := ApplyDeliveryEvent(StateDelivered, EventGatePassed)
	if r.Changed || r.NewState != StateDelivered || len(r.Actions) != 0 {
		t.Fatalf("Delivered+GatePassed = %+v, want unchanged no-op", r)
	}
}

func TestDeliveryStateString(t *testing.T) {
	t.Parallel()
	if StateQueued.String() != "Queued" {
		t.Errorf("StateQueued.String() = %q, want Queued", StateQueued.String())
	}
	if DeliveryState(200).String() != "Unknown" {
		t.Errorf("unknown state String() = %q, want Unknown", DeliveryState(200).String())
	}
}
