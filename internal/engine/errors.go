package engine

import "errors"

// Kind classifies an Error by how the caller should react to it.
type Kind string

const (
	// KindStructural: the caller's view is stale (room, lot or participant
	// gone). The client should pull a snapshot rather than retry.
	KindStructural Kind = "structural"
	// KindValidation: the input was rejected; state is untouched and a
	// corrected retry is safe.
	KindValidation Kind = "validation"
	// KindProtocol: the caller is not allowed to perform the action.
	KindProtocol Kind = "protocol"
	// KindTiming: a deferred transition lost the race to a manual one.
	// Never surfaced to clients.
	KindTiming Kind = "timing"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeRoomNotFound              Code = "ROOM_NOT_FOUND"
	CodeParticipantNotFound       Code = "PARTICIPANT_NOT_FOUND"
	CodeLotNotFound               Code = "LOT_NOT_FOUND"
	CodeInvalidRole               Code = "INVALID_ROLE"
	CodeWrongPhase                Code = "WRONG_PHASE"
	CodeRetentionRejected         Code = "RETENTION_REJECTED"
	CodeRetentionIncomplete       Code = "RETENTION_INCOMPLETE"
	CodeAuctionAlreadyInitialized Code = "AUCTION_ALREADY_INITIALIZED"
	CodeBidRejected               Code = "BID_REJECTED"
	CodeNoBidder                  Code = "NO_BIDDER"
	CodeHasBidder                 Code = "HAS_BIDDER"
	CodeRTMRejected               Code = "RTM_REJECTED"
	CodeRTMPending                Code = "RTM_PENDING"
	CodeLotStillOpen              Code = "LOT_STILL_OPEN"
	CodeTeamsNotAssigned          Code = "TEAMS_NOT_ASSIGNED"
	CodeReshuffleUsed             Code = "RESHUFFLE_USED"
	CodeNoFranchiseAvailable      Code = "NO_FRANCHISE_AVAILABLE"
	CodeInvalidRules              Code = "INVALID_RULES"
	CodeUnsupportedCommand        Code = "UNSUPPORTED_COMMAND"
)

// Reason narrows a rejection code, e.g. BID_REJECTED/bid_too_low.
type Reason string

const (
	ReasonNoLotOpen          Reason = "no_lot_open"
	ReasonBidTooLow          Reason = "bid_too_low"
	ReasonInsufficientBudget Reason = "insufficient_budget"
	ReasonSquadFull          Reason = "squad_full"
	ReasonOverseasCap        Reason = "overseas_cap"
	ReasonIndianCap          Reason = "indian_cap"
	ReasonNotYourFranchise   Reason = "not_your_franchise"
	ReasonNotEligible        Reason = "not_eligible"
	ReasonDuplicatePlayer    Reason = "duplicate_player"
	ReasonOverPurse          Reason = "over_purse"
	ReasonRetentionClosed    Reason = "retention_closed"
	ReasonCounterTooLow      Reason = "counter_too_low"
	ReasonNoRTMCards         Reason = "no_rtm_cards"
)

// Error is the domain error returned by every engine operation.
type Error struct {
	Kind    Kind
	Code    Code
	Reason  Reason
	Message string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return e.Message + " (" + string(e.Reason) + ")"
	}
	return e.Message
}

// Is matches by code, so errors.Is(err, ErrBidRejected) holds for every reason.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func (e *Error) because(reason Reason, message string) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Reason: reason, Message: message}
}

var (
	ErrRoomNotFound        = &Error{Kind: KindStructural, Code: CodeRoomNotFound, Message: "room not found"}
	ErrParticipantNotFound = &Error{Kind: KindStructural, Code: CodeParticipantNotFound, Message: "participant not found"}
	ErrLotNotFound         = &Error{Kind: KindStructural, Code: CodeLotNotFound, Message: "no lot is open"}

	ErrInvalidRole = &Error{Kind: KindProtocol, Code: CodeInvalidRole, Message: "caller is not allowed to do that"}

	ErrWrongPhase                = &Error{Kind: KindValidation, Code: CodeWrongPhase, Message: "not allowed in the current phase"}
	ErrRetentionRejected         = &Error{Kind: KindValidation, Code: CodeRetentionRejected, Message: "retention selection rejected"}
	ErrRetentionIncomplete       = &Error{Kind: KindValidation, Code: CodeRetentionIncomplete, Message: "not every franchise has submitted retention"}
	ErrAuctionAlreadyInitialized = &Error{Kind: KindValidation, Code: CodeAuctionAlreadyInitialized, Message: "auction pool already built for this run"}
	ErrBidRejected               = &Error{Kind: KindValidation, Code: CodeBidRejected, Message: "bid rejected"}
	ErrNoBidder                  = &Error{Kind: KindValidation, Code: CodeNoBidder, Message: "no bid has been placed on this lot"}
	ErrHasBidder                 = &Error{Kind: KindValidation, Code: CodeHasBidder, Message: "lot has a bidder and cannot be marked unsold"}
	ErrRTMRejected               = &Error{Kind: KindValidation, Code: CodeRTMRejected, Message: "right-to-match rejected"}
	ErrRTMPending                = &Error{Kind: KindValidation, Code: CodeRTMPending, Message: "waiting for a right-to-match decision"}
	ErrLotStillOpen              = &Error{Kind: KindValidation, Code: CodeLotStillOpen, Message: "current lot must be sold or marked unsold first"}
	ErrTeamsNotAssigned          = &Error{Kind: KindValidation, Code: CodeTeamsNotAssigned, Message: "teams have not been assigned"}
	ErrReshuffleUsed             = &Error{Kind: KindValidation, Code: CodeReshuffleUsed, Message: "reshuffle already used"}
	ErrNoFranchiseAvailable      = &Error{Kind: KindValidation, Code: CodeNoFranchiseAvailable, Message: "no franchise available"}
	ErrInvalidRules              = &Error{Kind: KindValidation, Code: CodeInvalidRules, Message: "invalid rules"}
	ErrUnsupportedCommand        = &Error{Kind: KindProtocol, Code: CodeUnsupportedCommand, Message: "unsupported command"}
)

// KindOf reports the Kind of err, or "" when err is not an engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
