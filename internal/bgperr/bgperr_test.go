package bgperr

import "testing"

func TestErrorStringIncludesSubcode(t *testing.T) {
	err := New(CodeMessageHeader, MessageHeaderConnectionNotSync)
	want := "MessageHeaderError: ConnectionNotSynchronized"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestHoldTimerExpiredHasNoSubcode(t *testing.T) {
	err := New(CodeHoldTimerExpired, 0)
	if got := err.Error(); got != "HoldTimerExpired" {
		t.Errorf("got %q, want %q", got, "HoldTimerExpired")
	}
}

func TestIsVersionError(t *testing.T) {
	verErr := New(CodeOpenMessage, OpenUnsupportedVersionNumber, 4)
	if !verErr.IsVersionError() {
		t.Error("expected version error to be detected")
	}

	other := New(CodeOpenMessage, OpenBadPeerAs)
	if other.IsVersionError() {
		t.Error("did not expect BadPeerAs to be a version error")
	}
}

func TestSubcodeStringUnknown(t *testing.T) {
	if got := SubcodeString(CodeUpdateMessage, 200); got != "InvalidUpdateMessageErrorSubcode" {
		t.Errorf("got %q", got)
	}
}
