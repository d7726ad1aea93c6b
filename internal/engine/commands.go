package engine

import (
	"time"

	"github.com/DoyleJ11/franchise-auction/internal/roster"
	"github.com/shopspring/decimal"
)

type CommandType string

const (
	CmdSetRules            CommandType = "SetRules"
	CmdAssignTeams         CommandType = "AssignTeams"
	CmdRequestReshuffle    CommandType = "RequestReshuffle"
	CmdForceReshuffle      CommandType = "ForceReshuffle"
	CmdStartRetention      CommandType = "StartRetention"
	CmdSubmitRetention     CommandType = "SubmitRetention"
	CmdStartAuctionPool    CommandType = "StartAuctionPool"
	CmdPlaceBid            CommandType = "PlaceBid"
	CmdSellCurrentPlayer   CommandType = "SellCurrentPlayer"
	CmdMarkUnsold          CommandType = "MarkCurrentPlayerUnsold"
	CmdAdvanceToNextLot    CommandType = "AdvanceToNextLot"
	CmdSubmitRTMDecision   CommandType = "SubmitRTMDecision"
	CmdEndAuction          CommandType = "EndAuction"
	CmdResetAuction        CommandType = "ResetAuction"
	CmdRetentionDeadline   CommandType = "RetentionDeadline"
	CmdPresentationElapsed CommandType = "PresentationElapsed"
	CmdRTMDeadline         CommandType = "RTMDeadline"
)

/*
	StartRetention      -> PhaseChanged, RetentionOpened (per user), TimerStarted(retention)
	SubmitRetention     -> RetentionSubmitted (controller), SquadChanged, [ReadyForAuction]
	RetentionDeadline   -> RetentionSubmitted(auto) per straggler, RetentionClosed, [ReadyForAuction]
	StartAuctionPool    -> TimerCancelled(retention), AuctionStarted, CategoryOpened, LotOpened
	PlaceBid            -> BidAccepted
	SellCurrentPlayer   -> PlayerSold, SquadChanged, RTMOffered + TimerStarted(rtm) | TimerStarted(presentation)
	MarkUnsold          -> PlayerUnsold, TimerStarted(presentation)
	SubmitRTMDecision   -> TimerCancelled(rtm), RTMResolved, SquadChanged, TimerStarted(presentation)
	PresentationElapsed -> [CategoryOpened] LotOpened | AuctionComplete
*/

type Caller struct {
	Username string
	Role     Role
}

var systemCaller = Caller{Role: RoleSystem}

// Command is one inbound action against a room.
type Command struct {
	Type   CommandType
	Caller Caller

	FranchiseID roster.FranchiseID
	Username    string
	Amount      decimal.Decimal
	PlayerID    string
	Selection   []string
	Accept      bool
	Rules       *Rules
}

// SystemCommand builds a command raised by the room itself.
func SystemCommand(t CommandType) Command {
	return Command{Type: t, Caller: systemCaller}
}

type EventType string

const (
	EvtParticipantJoined       EventType = "participantJoined"
	EvtParticipantReconnected  EventType = "participantReconnected"
	EvtParticipantDisconnected EventType = "participantDisconnected"
	EvtControllerConnected     EventType = "controllerConnected"
	EvtControllerDisconnected  EventType = "controllerDisconnected"
	EvtRulesUpdated            EventType = "rulesUpdated"
	EvtPhaseChanged            EventType = "phaseChanged"
	EvtTeamAssigned            EventType = "teamAssigned"
	EvtTeamMapping             EventType = "teamMapping"
	EvtReshuffled              EventType = "reshuffled"
	EvtRetentionOpened         EventType = "retentionOpened"
	EvtRetentionSubmitted      EventType = "retentionSubmitted"
	EvtRetentionClosed         EventType = "retentionClosed"
	EvtReadyForAuction         EventType = "readyForAuction"
	EvtAuctionStarted          EventType = "auctionStarted"
	EvtCategoryOpened          EventType = "categoryOpened"
	EvtLotOpened               EventType = "lotOpened"
	EvtBidAccepted             EventType = "bidAccepted"
	EvtPlayerSold              EventType = "playerSold"
	EvtPlayerUnsold            EventType = "playerUnsold"
	EvtRTMOffered              EventType = "rtmOffered"
	EvtRTMResolved             EventType = "rtmResolved"
	EvtAuctionComplete         EventType = "auctionComplete"
	EvtAuctionReset            EventType = "auctionReset"
	EvtSquadChanged            EventType = "squadChanged"
	EvtTimerStarted            EventType = "timerStarted"
	EvtTimerCancelled          EventType = "timerCancelled"
)

// Audience says who an event is delivered to.
type Audience string

const (
	AudienceRoom       Audience = "room"
	AudienceUser       Audience = "user"
	AudienceController Audience = "controller"
	// AudienceInternal events drive the room (timers, squad pushes) and are
	// never forwarded as-is.
	AudienceInternal Audience = "internal"
)

// TimerKind keys a room's deferred transitions. A room holds at most one
// pending timer per kind.
type TimerKind string

const (
	TimerRetention    TimerKind = "retention"
	TimerPresentation TimerKind = "presentation"
	TimerRTM          TimerKind = "rtm"
)

// Command returns the command a fired timer of this kind raises.
func (k TimerKind) Command() Command {
	switch k {
	case TimerRetention:
		return SystemCommand(CmdRetentionDeadline)
	case TimerRTM:
		return SystemCommand(CmdRTMDeadline)
	default:
		return SystemCommand(CmdPresentationElapsed)
	}
}

type Event struct {
	Type     EventType
	Audience Audience
	// Username is the recipient for AudienceUser and the subject of
	// EvtSquadChanged.
	Username string
	Timer    TimerKind
	After    time.Duration
	Data     any
}

func roomEvent(t EventType, data any) Event {
	return Event{Type: t, Audience: AudienceRoom, Data: data}
}

func userEvent(t EventType, username string, data any) Event {
	return Event{Type: t, Audience: AudienceUser, Username: username, Data: data}
}

func controllerEvent(t EventType, data any) Event {
	return Event{Type: t, Audience: AudienceController, Data: data}
}

func squadChanged(username string) Event {
	return Event{Type: EvtSquadChanged, Audience: AudienceInternal, Username: username}
}

func timerStarted(kind TimerKind, after time.Duration) Event {
	return Event{Type: EvtTimerStarted, Audience: AudienceInternal, Timer: kind, After: after}
}

func timerCancelled(kind TimerKind) Event {
	return Event{Type: EvtTimerCancelled, Audience: AudienceInternal, Timer: kind}
}

// ContainsEvent reports whether events holds an event of the given type.
func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// Event payloads. Field names are the wire names.

type ParticipantNotice struct {
	Username    string             `json:"username"`
	FranchiseID roster.FranchiseID `json:"franchise_id,omitempty"`
	Total       int                `json:"total_participants"`
}

type RulesUpdated struct {
	Rules Rules `json:"rules"`
}

type PhaseChanged struct {
	Phase Phase `json:"phase"`
}

type TeamAssigned struct {
	Franchise    roster.Franchise `json:"franchise"`
	CanReshuffle bool             `json:"can_reshuffle"`
}

type Assignment struct {
	Username  string           `json:"username"`
	Franchise roster.Franchise `json:"franchise"`
}

type TeamMapping struct {
	Mapping []Assignment `json:"mapping"`
}

type Reshuffled struct {
	Username string             `json:"username"`
	From     roster.FranchiseID `json:"from"`
	To       roster.Franchise   `json:"to"`
	Forced   bool               `json:"forced"`
}

type RetentionOpened struct {
	Franchise roster.Franchise `json:"franchise"`
	Roster    []roster.Player  `json:"roster"`
	Deadline  time.Time        `json:"deadline"`
	Rules     Rules            `json:"rules"`
}

type RetentionSubmitted struct {
	Username    string             `json:"username"`
	FranchiseID roster.FranchiseID `json:"franchise_id"`
	Count       int                `json:"count"`
	Auto        bool               `json:"auto"`
}

type AuctionStarted struct {
	CategorySizes map[Category]int `json:"category_sizes"`
	Excluded      int              `json:"excluded"`
}

type CategoryOpened struct {
	Category Category `json:"category"`
	Size     int      `json:"size"`
}

type LotOpened struct {
	Player    roster.Player   `json:"player"`
	Category  Category        `json:"category"`
	BasePrice decimal.Decimal `json:"base_price"`
}

type BidAccepted struct {
	PlayerID    string             `json:"player_id"`
	FranchiseID roster.FranchiseID `json:"franchise_id"`
	Username    string             `json:"username"`
	Amount      decimal.Decimal    `json:"amount"`
}

type PlayerSold struct {
	Player           roster.Player      `json:"player"`
	BuyerFranchiseID roster.FranchiseID `json:"buyer_franchise_id"`
	BuyerUsername    string             `json:"buyer_username"`
	Price            decimal.Decimal    `json:"price"`
}

type PlayerUnsold struct {
	Player   roster.Player `json:"player"`
	Category Category      `json:"category"`
}

type RTMOffered struct {
	Player              roster.Player      `json:"player"`
	OriginalFranchiseID roster.FranchiseID `json:"original_franchise_id"`
	WinningFranchiseID  roster.FranchiseID `json:"winning_franchise_id"`
	WinningBid          decimal.Decimal    `json:"winning_bid"`
	Deadline            time.Time          `json:"deadline"`
}

type RTMResolved struct {
	Player                roster.Player      `json:"player"`
	Accepted              bool               `json:"accepted"`
	TimedOut              bool               `json:"timed_out"`
	FinalBuyerFranchiseID roster.FranchiseID `json:"final_buyer_franchise_id"`
	FinalPrice            decimal.Decimal    `json:"final_price"`
}

type AuctionComplete struct {
	Forced bool `json:"forced"`
}
