package lifecycle

import (
	"reflect"
	"testing"
)

func TestLabelFor_AllowLists(t *testing.T) {
	cases := []struct {
		kind   EventKind
		status string
		want   StatusLabel
		ok     bool
	}{
		{KindVoiceStatus, "completed", LabelVoiceCompleted, true},
		{KindVoiceStatus, "busy", "", false},
		{KindRecordingStatus, "completed", LabelRecordingCompleted, true},
		{KindRecordingStatus, "in-progress", LabelRecordingInProgress, true},
		{KindRecordingStatus, "absent", LabelRecordingAbsent, true},
		{KindRecordingStatus, "failed", "", false},
		{KindSMSStatus, "failed", LabelSMSFailed, true},
		{KindSMSStatus, "Delivered", "", false},
		{EventKind("fax_status"), "completed", "", false},
	}
	for _, tc := range cases {
		got, ok := LabelFor(tc.kind, tc.status)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("LabelFor(%s,%q)=(%q,%v) want (%q,%v)", tc.kind, tc.status, got, ok, tc.want, tc.ok)
		}
	}
}

func TestLabelsCarryKindPrefix(t *testing.T) {
	for kind, statuses := range vocabulary {
		for status, info := range statuses {
			if want := StatusLabel(kind.labelPrefix() + "_" + status); info.label != want {
				t.Fatalf("%s %s: label %q want %q", kind, status, info.label, want)
			}
		}
	}
}

func TestAcceptedStatuses_RankOrder(t *testing.T) {
	got := AcceptedStatuses(KindVoiceStatus)
	want := []string{"initiated", "ringing", "answered", "completed"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}

	got = AcceptedStatuses(KindRecordingStatus)
	want = []string{"in-progress", "absent", "completed"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestTerminalStatuses(t *testing.T) {
	if !IsTerminal(KindVoiceStatus, "completed") || IsTerminal(KindVoiceStatus, "ringing") {
		t.Fatalf("voice terminal states wrong")
	}
	if !IsTerminal(KindRecordingStatus, "absent") || IsTerminal(KindRecordingStatus, "in-progress") {
		t.Fatalf("recording terminal states wrong")
	}
}

func TestMustLabelPanicsOutsideAllowList(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustLabel(KindRecordingStatus, "failed")
}
