package domain

import "fmt"

// RadioDisconnectCode is the radio bridge's reason for tearing a leg
// down. The numeric values are a stable contract with the bridge.
type RadioDisconnectCode int

const (
	DiscNotDisconnected RadioDisconnectCode = iota
	DiscIncomingMissed
	DiscNormalLocal
	DiscNormalRemote
	DiscBusy
	DiscCongestion
	DiscInvalidNumber
	DiscNumberUnreachable
	DiscServerUnreachable
	DiscServerError
	DiscTimedOut
	DiscLostSignal
	DiscLimitExceeded
	DiscIncomingRejected
	DiscPowerOff
	DiscOutOfService
	DiscICCError
	DiscCallBarred
	DiscFDNBlocked
	DiscCSRestrictedNormal
	DiscCSRestrictedEmergency
	DiscUnobtainableNumber
	DiscCDMADrop
	DiscCDMAIntercept
	DiscCDMAReorder
	DiscCDMASOReject
	DiscCDMARetryOrder
	DiscCDMAAccessFailure
	DiscCDMAPreempted
	DiscCDMANotEmergency
	DiscCDMAAccessBlocked
	DiscEmergencyTemporaryFailure
	DiscEmergencyPermanentFailure
	DiscNormalUnspecified
	DiscDialModifiedToUSSD
	DiscDialModifiedToSS
	DiscDialModifiedToDial
	DiscIMSMergedSuccessfully
	DiscDataDisabled
	DiscDataLimitReached
	DiscError
)

func (c RadioDisconnectCode) String() string {
	if n, ok := discCodeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(c))
}

var discCodeNames = map[RadioDisconnectCode]string{
	DiscNotDisconnected:           "NOT_DISCONNECTED",
	DiscIncomingMissed:            "INCOMING_MISSED",
	DiscNormalLocal:               "LOCAL",
	DiscNormalRemote:              "NORMAL",
	DiscBusy:                      "BUSY",
	DiscCongestion:                "CONGESTION",
	DiscInvalidNumber:             "INVALID_NUMBER",
	DiscNumberUnreachable:         "NUMBER_UNREACHABLE",
	DiscServerUnreachable:         "SERVER_UNREACHABLE",
	DiscServerError:               "SERVER_ERROR",
	DiscTimedOut:                  "TIMED_OUT",
	DiscLostSignal:                "LOST_SIGNAL",
	DiscLimitExceeded:             "LIMIT_EXCEEDED",
	DiscIncomingRejected:          "INCOMING_REJECTED",
	DiscPowerOff:                  "POWER_OFF",
	DiscOutOfService:              "OUT_OF_SERVICE",
	DiscICCError:                  "ICC_ERROR",
	DiscCallBarred:                "CALL_BARRED",
	DiscFDNBlocked:                "FDN_BLOCKED",
	DiscCSRestrictedNormal:        "CS_RESTRICTED_NORMAL",
	DiscCSRestrictedEmergency:     "CS_RESTRICTED_EMERGENCY",
	DiscUnobtainableNumber:        "UNOBTAINABLE_NUMBER",
	DiscCDMADrop:                  "CDMA_DROP",
	DiscCDMAIntercept:             "CDMA_INTERCEPT",
	DiscCDMAReorder:               "CDMA_REORDER",
	DiscCDMASOReject:              "CDMA_SO_REJECT",
	DiscCDMARetryOrder:            "CDMA_RETRY_ORDER",
	DiscCDMAAccessFailure:         "CDMA_ACCESS_FAILURE",
	DiscCDMAPreempted:             "CDMA_PREEMPTED",
	DiscCDMANotEmergency:          "CDMA_NOT_EMERGENCY",
	DiscCDMAAccessBlocked:         "CDMA_ACCESS_BLOCKED",
	DiscEmergencyTemporaryFailure: "EMERGENCY_TEMP_FAILURE",
	DiscEmergencyPermanentFailure: "EMERGENCY_PERM_FAILURE",
	DiscNormalUnspecified:         "NORMAL_UNSPECIFIED",
	DiscDialModifiedToUSSD:        "DIAL_MODIFIED_TO_USSD",
	DiscDialModifiedToSS:          "DIAL_MODIFIED_TO_SS",
	DiscDialModifiedToDial:        "DIAL_MODIFIED_TO_DIAL",
	DiscIMSMergedSuccessfully:     "IMS_MERGED_SUCCESSFULLY",
	DiscDataDisabled:              "DATA_DISABLED",
	DiscDataLimitReached:          "DATA_LIMIT_REACHED",
	DiscError:                     "ERROR",
}

// DisconnectCategory is the generic bucket shown to the host framework.
type DisconnectCategory int

const (
	CategoryUnknown DisconnectCategory = iota
	CategoryLocal
	CategoryRemote
	CategoryBusy
	CategoryRejected
	CategoryCanceled
	CategoryMissed
	CategoryRestricted
	CategoryError
	CategoryOther
)

func (c DisconnectCategory) String() string {
	switch c {
	case CategoryLocal:
		return "local"
	case CategoryRemote:
		return "remote"
	case CategoryBusy:
		return "busy"
	case CategoryRejected:
		return "rejected"
	case CategoryCanceled:
		return "canceled"
	case CategoryMissed:
		return "missed"
	case CategoryRestricted:
		return "restricted"
	case CategoryError:
		return "error"
	case CategoryOther:
		return "other"
	default:
		return "unknown"
	}
}

// ToneID selects the in-call tone played after a disconnect. ToneNone
// means silence.
type ToneID int

const (
	ToneNone ToneID = iota
	ToneBusy
	ToneCongestion
	ToneReorder
	ToneIntercept
	ToneCallEnded
	ToneOutOfService
)

// DisconnectDescriptor is the immutable translated form handed to the
// framework bridge. Construction is the only lifecycle it has.
type DisconnectDescriptor struct {
	Category    DisconnectCategory
	Label       string
	Description string
	Reason      string
	Tone        ToneID
}

// discCategories maps every recognized code to its generic bucket.
// Codes absent here fall through to CategoryUnknown.
var discCategories = map[RadioDisconnectCode]DisconnectCategory{
	DiscNormalLocal:               CategoryLocal,
	DiscNormalRemote:              CategoryRemote,
	DiscNormalUnspecified:         CategoryRemote,
	DiscIMSMergedSuccessfully:     CategoryOther,
	DiscBusy:                      CategoryBusy,
	DiscCDMADrop:                  CategoryError,
	DiscCongestion:                CategoryError,
	DiscICCError:                  CategoryError,
	DiscOutOfService:              CategoryError,
	DiscPowerOff:                  CategoryError,
	DiscLostSignal:                CategoryError,
	DiscServerError:               CategoryError,
	DiscServerUnreachable:         CategoryError,
	DiscNumberUnreachable:         CategoryError,
	DiscTimedOut:                  CategoryError,
	DiscCDMAAccessFailure:         CategoryError,
	DiscCDMAIntercept:             CategoryError,
	DiscCDMAReorder:               CategoryError,
	DiscCDMARetryOrder:            CategoryError,
	DiscCDMASOReject:              CategoryError,
	DiscEmergencyTemporaryFailure: CategoryError,
	DiscEmergencyPermanentFailure: CategoryError,
	DiscDataDisabled:              CategoryError,
	DiscDataLimitReached:          CategoryError,
	DiscError:                     CategoryError,
	DiscCallBarred:                CategoryRestricted,
	DiscFDNBlocked:                CategoryRestricted,
	DiscCSRestrictedNormal:        CategoryRestricted,
	DiscCSRestrictedEmergency:     CategoryRestricted,
	DiscCDMANotEmergency:          CategoryRestricted,
	DiscCDMAAccessBlocked:         CategoryRestricted,
	DiscCDMAPreempted:             CategoryRejected,
	DiscIncomingRejected:          CategoryRejected,
	DiscIncomingMissed:            CategoryMissed,
	DiscInvalidNumber:             CategoryError,
	DiscUnobtainableNumber:        CategoryError,
	DiscLimitExceeded:             CategoryError,
	DiscNotDisconnected:           CategoryUnknown,
	DiscDialModifiedToUSSD:        CategoryOther,
	DiscDialModifiedToSS:          CategoryOther,
	DiscDialModifiedToDial:        CategoryOther,
}

// discLabels carries user-visible strings for the subset of codes the
// framework renders; everything else shows its generic category only.
var discLabels = map[RadioDisconnectCode]string{
	DiscBusy:                      "Line busy",
	DiscCongestion:                "Network congested",
	DiscInvalidNumber:             "Invalid number",
	DiscNumberUnreachable:         "Number unreachable",
	DiscPowerOff:                  "Radio off",
	DiscOutOfService:              "Out of service",
	DiscCallBarred:                "Call barred",
	DiscFDNBlocked:                "Fixed dialing restricted",
	DiscCDMANotEmergency:          "Emergency calls only",
	DiscDataDisabled:              "Mobile data disabled",
	DiscDataLimitReached:          "Data limit reached",
	DiscEmergencyTemporaryFailure: "Emergency call failed, try again",
	DiscEmergencyPermanentFailure: "Emergency call unavailable",
}

// discTones carries the post-disconnect tone for the subset of codes
// with an audible outcome.
var discTones = map[RadioDisconnectCode]ToneID{
	DiscBusy:              ToneBusy,
	DiscCongestion:        ToneCongestion,
	DiscCDMAReorder:       ToneReorder,
	DiscCDMARetryOrder:    ToneReorder,
	DiscCDMADrop:          ToneCallEnded,
	DiscCDMAIntercept:     ToneIntercept,
	DiscCDMASOReject:      ToneReorder,
	DiscOutOfService:      ToneOutOfService,
	DiscLostSignal:        ToneCallEnded,
	DiscNormalRemote:      ToneCallEnded,
	DiscNormalUnspecified: ToneCallEnded,
}

// MapCause translates a radio disconnect code into the framework's
// descriptor. Pure: same inputs always produce the same value, and
// unrecognized codes degrade to CategoryUnknown rather than failing.
func MapCause(code RadioDisconnectCode, reason string) DisconnectDescriptor {
	category, ok := discCategories[code]
	if !ok {
		category = CategoryUnknown
	}
	fullReason := code.String()
	if reason != "" {
		fullReason = reason + ", " + fullReason
	}
	return DisconnectDescriptor{
		Category:    category,
		Label:       discLabels[code],
		Description: discLabels[code],
		Reason:      fullReason,
		Tone:        discTones[code],
	}
}
