// Package bgperr enumerates the NOTIFICATION (code, subcode) taxonomy
// from RFC 4271 and RFC 7313, and wraps it as a Go error type the FSM
// and codec can branch on.
package bgperr

import "fmt"

// Code is a NOTIFICATION top-level error code.
type Code uint8

const (
	CodeReserved            Code = 0
	CodeMessageHeader       Code = 1
	CodeOpenMessage         Code = 2
	CodeUpdateMessage       Code = 3
	CodeHoldTimerExpired    Code = 4
	CodeFSM                 Code = 5
	CodeCease               Code = 6
	CodeRouteRefreshMessage Code = 7
)

func (c Code) String() string {
	switch c {
	case CodeReserved:
		return "ReservedNotificationErrorCode"
	case CodeMessageHeader:
		return "MessageHeaderError"
	case CodeOpenMessage:
		return "OpenMessageError"
	case CodeUpdateMessage:
		return "UpdateMessageError"
	case CodeHoldTimerExpired:
		return "HoldTimerExpired"
	case CodeFSM:
		return "FSMError"
	case CodeCease:
		return "CeaseError"
	case CodeRouteRefreshMessage:
		return "RouteRefreshMessageError"
	default:
		return fmt.Sprintf("InvalidNotificationErrorCode(%d)", uint8(c))
	}
}

// MessageHeaderErrorSubcode values (RFC 4271 §6.1).
const (
	MessageHeaderUnspecific             uint8 = 0
	MessageHeaderConnectionNotSync      uint8 = 1
	MessageHeaderBadMessageLength       uint8 = 2
	MessageHeaderBadMessageType         uint8 = 3
)

func messageHeaderSubcodeString(s uint8) string {
	switch s {
	case MessageHeaderUnspecific:
		return "UnspecificMessageHeaderError"
	case MessageHeaderConnectionNotSync:
		return "ConnectionNotSynchronized"
	case MessageHeaderBadMessageLength:
		return "BadMessageLength"
	case MessageHeaderBadMessageType:
		return "BadMessageType"
	default:
		return "InvalidMessageHeaderErrorSubcode"
	}
}

// OpenMessageErrorSubcode values (RFC 4271 §6.2, RFC 5492, RFC 9234).
const (
	OpenUnspecific               uint8 = 0
	OpenUnsupportedVersionNumber uint8 = 1
	OpenBadPeerAs                uint8 = 2
	OpenBadBgpIdentifier         uint8 = 3
	OpenUnsupportedOptionalParam uint8 = 4
	OpenUnacceptableHoldTime     uint8 = 6
	OpenUnsupportedCapability    uint8 = 7
	OpenRoleMismatch             uint8 = 8
)

func openSubcodeString(s uint8) string {
	switch s {
	case OpenUnspecific:
		return "UnspecificOpenMessageError"
	case OpenUnsupportedVersionNumber:
		return "UnsupportedVersionNumber"
	case OpenBadPeerAs:
		return "BadPeerAs"
	case OpenBadBgpIdentifier:
		return "BadBgpIdentifier"
	case OpenUnsupportedOptionalParam:
		return "UnsupportedOptionalParameter"
	case OpenUnacceptableHoldTime:
		return "UnacceptableHoldTime"
	case OpenUnsupportedCapability:
		return "UnsupportedCapability"
	case OpenRoleMismatch:
		return "RoleMismatch"
	default:
		return "InvalidOpenMessageErrorSubcode"
	}
}

// UpdateMessageErrorSubcode values (RFC 4271 §6.3).
const (
	UpdateUnspecific            uint8 = 0
	UpdateMalformedAttrList     uint8 = 1
	UpdateUnrecognizedWellKnown uint8 = 2
	UpdateMissingWellKnown      uint8 = 3
	UpdateAttrFlagsError        uint8 = 4
	UpdateAttrLengthError       uint8 = 5
	UpdateInvalidOrigin         uint8 = 6
	UpdateInvalidNextHop        uint8 = 8
	UpdateOptionalAttrError     uint8 = 9
	UpdateInvalidNetworkField   uint8 = 10
	UpdateMalformedAsPath       uint8 = 11
)

func updateSubcodeString(s uint8) string {
	switch s {
	case UpdateUnspecific:
		return "UnspecificUpdateMessageError"
	case UpdateMalformedAttrList:
		return "MalformedAttributeList"
	case UpdateUnrecognizedWellKnown:
		return "UnrecognizedWellKnownAttribute"
	case UpdateMissingWellKnown:
		return "MissingWellKnownAttribute"
	case UpdateAttrFlagsError:
		return "AttributeFlagsError"
	case UpdateAttrLengthError:
		return "AttributeLengthError"
	case UpdateInvalidOrigin:
		return "InvalidOriginAttribute"
	case UpdateInvalidNextHop:
		return "InvalidNextHopAttribute"
	case UpdateOptionalAttrError:
		return "OptionalAttributeError"
	case UpdateInvalidNetworkField:
		return "InvalidNetworkField"
	case UpdateMalformedAsPath:
		return "MalformedAsPath"
	default:
		return "InvalidUpdateMessageErrorSubcode"
	}
}

// FSMErrorSubcode values (RFC 6608).
const (
	FSMUnspecified                             uint8 = 0
	FSMUnexpectedMessageInOpenSent              uint8 = 1
	FSMUnexpectedMessageInOpenConfirm           uint8 = 2
	FSMUnexpectedMessageInEstablished           uint8 = 3
)

func fsmSubcodeString(s uint8) string {
	switch s {
	case FSMUnspecified:
		return "UnspecifiedFSMError"
	case FSMUnexpectedMessageInOpenSent:
		return "ReceivedUnexpectedMessageInOpenSentState"
	case FSMUnexpectedMessageInOpenConfirm:
		return "ReceivedUnexpectedMessageInOpenConfirmState"
	case FSMUnexpectedMessageInEstablished:
		return "ReceivedUnexpectedMessageInEstablishedState"
	default:
		return "InvalidFSMErrorSubcode"
	}
}

// CeaseErrorSubcode values (RFC 4486, RFC 8203, RFC 8538).
const (
	CeaseReserved                      uint8 = 0
	CeaseMaximumNumberOfPrefixesReached uint8 = 1
	CeaseAdministrativeShutdown        uint8 = 2
	CeasePeerDeconfigured              uint8 = 3
	CeaseAdministrativeReset           uint8 = 4
	CeaseConnectionRejected            uint8 = 5
	CeaseOtherConfigurationChange      uint8 = 6
	CeaseConnectionCollisionResolution uint8 = 7
	CeaseOutOfResources                uint8 = 8
	CeaseHardReset                     uint8 = 9
)

func ceaseSubcodeString(s uint8) string {
	switch s {
	case CeaseReserved:
		return "CeaseErrorReserved"
	case CeaseMaximumNumberOfPrefixesReached:
		return "MaximumNumberOfPrefixesReached"
	case CeaseAdministrativeShutdown:
		return "AdministrativeShutdown"
	case CeasePeerDeconfigured:
		return "PeerDeconfigured"
	case CeaseAdministrativeReset:
		return "AdministrativeReset"
	case CeaseConnectionRejected:
		return "ConnectionRejected"
	case CeaseOtherConfigurationChange:
		return "OtherConfigurationChange"
	case CeaseConnectionCollisionResolution:
		return "ConnectionCollisionResolution"
	case CeaseOutOfResources:
		return "OutOfResources"
	case CeaseHardReset:
		return "HardReset"
	default:
		return "InvalidCeaseErrorSubcode"
	}
}

// RouteRefreshMessageErrorSubcode values (RFC 7313).
const (
	RouteRefreshReserved            uint8 = 0
	RouteRefreshInvalidMessageLength uint8 = 1
)

func routeRefreshSubcodeString(s uint8) string {
	switch s {
	case RouteRefreshReserved:
		return "RouteRefreshMessageErrorReserved"
	case RouteRefreshInvalidMessageLength:
		return "InvalidMessageLength"
	default:
		return "InvalidRouteRefreshMessageErrorSubcode"
	}
}

// SubcodeString renders the subcode under the registry selected by code.
func SubcodeString(code Code, subcode uint8) string {
	switch code {
	case CodeMessageHeader:
		return messageHeaderSubcodeString(subcode)
	case CodeOpenMessage:
		return openSubcodeString(subcode)
	case CodeUpdateMessage:
		return updateSubcodeString(subcode)
	case CodeFSM:
		return fsmSubcodeString(subcode)
	case CodeCease:
		return ceaseSubcodeString(subcode)
	case CodeRouteRefreshMessage:
		return routeRefreshSubcodeString(subcode)
	case CodeHoldTimerExpired:
		return ""
	default:
		return "InvalidSubcode"
	}
}

// NotificationError is the Go error representation of a BGP NOTIFICATION:
// every protocol violation this module can detect is reduced to one of
// these before it reaches the FSM.
type NotificationError struct {
	NotifCode    Code
	NotifSubcode uint8
	Data         []byte
}

// New constructs a NotificationError with optional data bytes (e.g. the
// offending message length, or the highest acceptable version number).
func New(code Code, subcode uint8, data ...byte) *NotificationError {
	return &NotificationError{NotifCode: code, NotifSubcode: subcode, Data: data}
}

func (e *NotificationError) Error() string {
	if e.NotifSubcode == 0 && e.NotifCode == CodeHoldTimerExpired {
		return e.NotifCode.String()
	}
	sub := SubcodeString(e.NotifCode, e.NotifSubcode)
	if sub == "" {
		return e.NotifCode.String()
	}
	return fmt.Sprintf("%s: %s", e.NotifCode, sub)
}

// IsVersionError reports whether a received NOTIFICATION signals an
// OPEN version mismatch (OpenMessageError/UnsupportedVersionNumber).
// The FSM treats this distinctly from a generic NotificationReceived
// event per spec.md §4.2.
func (e *NotificationError) IsVersionError() bool {
	return e.NotifCode == CodeOpenMessage && e.NotifSubcode == OpenUnsupportedVersionNumber
}
