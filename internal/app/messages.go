package app

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"livetrivia/internal/domain"
)

// MessageKind is the family an intermission message is drawn from.
type MessageKind int

const (
	MessageRank MessageKind = iota
	MessageTip
	MessageFact
	messageKindCount
)

// Tip is a static gameplay hint.
type Tip int

const (
	TipLeaderboard Tip = iota
	TipEliminations
	TipSpeed
	TipAvatar
	TipQuip
	TipInvite
	tipCount
)

func (t Tip) Text() string {
	switch t {
	case TipLeaderboard:
		return "Tap the trophy in the top right to see the leaderboards."
	case TipEliminations:
		return "Take your time. We remove incorrect answers as time goes on."
	case TipSpeed:
		return "You get more points the faster you answer the question."
	case TipAvatar:
		return "You can change your avatar by tapping the avatar in the top left."
	case TipQuip:
		return "The first person to answer gets to broadcast their quip to the rest of the players. Change yours by clicking the avatar in the top left."
	case TipInvite:
		return "Invite your friends to play! The more the merrier!"
	}
	return ""
}

// Fact is a static piece of trivia shown between questions.
type Fact int

const (
	FactHeadbanging Fact = iota
	FactGuineaPigs
	FactFeathers
	FactSnakes
	FactCrows
	FactBabylon
	FactEradicated
	FactPillow
	FactCherophobia
	FactKangaroo
	factCount
)

func (f Fact) Text() string {
	switch f {
	case FactHeadbanging:
		return "Banging your head against a wall for one hour burns 150 calories."
	case FactGuineaPigs:
		return "In Switzerland it is illegal to own just one guinea pig."
	case FactFeathers:
		return "Pteronophobia is the fear of being tickled by feathers."
	case FactSnakes:
		return "Snakes can help predict earthquakes."
	case FactCrows:
		return "Crows can hold grudges against specific individual people."
	case FactBabylon:
		return "The oldest “your mom” joke was discovered on a 3,500 year old Babylonian tablet."
	case FactEradicated:
		return "So far, two diseases have successfully been eradicated: smallpox and rinderpest."
	case FactPillow:
		return "29th May is officially “Put a Pillow on Your Fridge Day”."
	case FactCherophobia:
		return "Cherophobia is an irrational fear of fun or happiness."
	case FactKangaroo:
		return "If you lift a kangaroo’s tail off the ground it can’t hop."
	}
	return ""
}

// MessageGenerator picks intermission messages. A draw is a pure function of
// the user, the phase start and the salt, so repeated polls agree and every
// instance sharing a salt shows a user the same message.
type MessageGenerator struct {
	salt uint64
}

func NewMessageGenerator(salt uint64) *MessageGenerator {
	return &MessageGenerator{salt: salt}
}

// Generate draws the message userID sees for the phase that started at
// phaseStart: a family uniformly, then a member of it. rank is only called
// for rank messages.
func (g *MessageGenerator) Generate(userID string, phaseStart time.Time, rank func(domain.Window) domain.Rank) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	rng := rand.New(rand.NewPCG(h.Sum64()^g.salt, uint64(phaseStart.UnixNano())))
	return drawMessage(rng).render(rank)
}

type messageDraw struct {
	kind   MessageKind
	window domain.Window
	tip    Tip
	fact   Fact
}

func drawMessage(rng *rand.Rand) messageDraw {
	return messageDraw{
		kind:   MessageKind(rng.IntN(int(messageKindCount))),
		window: domain.Windows[rng.IntN(len(domain.Windows))],
		tip:    Tip(rng.IntN(int(tipCount))),
		fact:   Fact(rng.IntN(int(factCount))),
	}
}

func (d messageDraw) render(rank func(domain.Window) domain.Rank) string {
	switch d.kind {
	case MessageRank:
		return RankMessage(rank(d.window))
	case MessageTip:
		return d.tip.Text()
	default:
		return d.fact.Text()
	}
}

// RankMessage renders a rank as a sentence.
func RankMessage(r domain.Rank) string {
	switch r.Rank {
	case 1:
		if r.Window == domain.WindowAll {
			return fmt.Sprintf("You are currently the greatest of all time with %d points!", r.Points)
		}
		return fmt.Sprintf("You are currently the player of %s with %d points!", bestPhrase(r.Window), r.Points)
	case 2, 3:
		return fmt.Sprintf("You are the %s ranked player %s with %d points!", Ordinal(r.Rank), spanPhrase(r.Window), r.Points)
	default:
		return fmt.Sprintf("You are the %s ranked player %s with %d points.", Ordinal(r.Rank), spanPhrase(r.Window), r.Points)
	}
}

func bestPhrase(w domain.Window) string {
	if w == domain.WindowHour {
		return "the hour"
	}
	return "the past " + w.String()
}

func spanPhrase(w domain.Window) string {
	if w == domain.WindowAll {
		return "of all time"
	}
	return "in the past " + w.String()
}

// Ordinal formats n with its English suffix: 1st, 2nd, 3rd, 4th, 11th, 21st.
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
