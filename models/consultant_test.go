package models

import "testing"

func TestCanTransitionAllowedEdges(t *testing.T) {
	allowed := [][2]string{
		{StatusOffline, StatusOnline},
		{StatusOnline, StatusOffline},
		{StatusOnline, StatusBusy},
		{StatusBusy, StatusOnline},
	}
	for _, edge := range allowed {
		if !CanTransition(edge[0], edge[1]) {
			t.Fatalf("expected %s -> %s to be allowed", edge[0], edge[1])
		}
	}
}

func TestCanTransitionRejectsOfflineToBusy(t *testing.T) {
	if CanTransition(StatusOffline, StatusBusy) {
		t.Fatal("offline -> busy must not be allowed")
	}
}

func TestCanTransitionRejectsForcingBusyOffline(t *testing.T) {
	if CanTransition(StatusBusy, StatusOffline) {
		t.Fatal("busy -> offline must not be allowed without a release")
	}
}

func TestCanTransitionRejectsSelfLoops(t *testing.T) {
	for _, s := range []string{StatusOffline, StatusOnline, StatusBusy} {
		if CanTransition(s, s) {
			t.Fatalf("%s -> %s must not be allowed", s, s)
		}
	}
}

func TestCanTransitionRejectsUnknownStates(t *testing.T) {
	if CanTransition("away", StatusOnline) {
		t.Fatal("unknown source state must not transition")
	}
	if CanTransition(StatusOnline, "away") {
		t.Fatal("unknown target state must not transition")
	}
}

func TestValidPresenceStatus(t *testing.T) {
	for _, s := range []string{StatusOffline, StatusOnline, StatusBusy} {
		if !ValidPresenceStatus(s) {
			t.Fatalf("%s should be valid", s)
		}
	}
	if ValidPresenceStatus("away") {
		t.Fatal("away should not be valid")
	}
}
