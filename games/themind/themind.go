// The Mind
//
// A cooperative card game. Each player holds a hand of cards numbered 1-100,
// and the group must play every card into a shared pile in ascending order
// without communicating. There are no turns; any player may play at any time.
//
// Rules implemented here:
// - Levels 1 through 12; each player is dealt <level> cards per level
// - Lives equal the player count (2-4); one throwing star regardless
// - A play is in order when the card is the lowest card left in any hand
// - A play out of order still lands on the pile, but every card sitting
//   between the old pile top and the played card is voided from all hands,
//   and the group loses a life
// - A throwing star forces every player to discard their lowest card onto
//   the pile, with no life penalty
// - Clearing level 12 wins the game; losing the last life ends it

package themind

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
)

const (
	// MinPlayers and MaxPlayers bound the roster size.
	MinPlayers = 2
	MaxPlayers = 4

	// MaxLevel is the last level; clearing it wins the game.
	MaxLevel = 12

	// CardMin and CardMax bound the card values in the deck.
	CardMin = 1
	CardMax = 100
)

// Status is the game state machine.
type Status string

const (
	StatusSetup      Status = "setup"       // roster complete, no cards dealt yet
	StatusInProgress Status = "in_progress" // level dealt, cards being played
	StatusLevelClear Status = "level_clear" // all hands empty, waiting on advance
	StatusWon        Status = "won"
	StatusLost       Status = "lost"
)

// Terminal reports whether no further moves are possible.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost
}

// ErrTerminalState is returned for any mutating call after the game has
// been won or lost.
var ErrTerminalState = errors.New("game is already over")

// ErrNoThrowingStars is returned when a throwing star is used with none left.
var ErrNoThrowingStars = errors.New("no throwing stars remaining")

// ErrLevelNotClear is returned when advancing before the level is finished.
var ErrLevelNotClear = errors.New("level is not clear yet")

// InvalidMoveError reports a move that violates the rules. The game state
// is untouched.
type InvalidMoveError struct {
	Reason string
}

func (e *InvalidMoveError) Error() string {
	return e.Reason
}

// Discard records a single card leaving a player's hand outside of a
// normal play, either voided by a mistake or thrown via a star.
type Discard struct {
	Player int `json:"player"`
	Card   int `json:"card"`
}

// PlayResult describes the outcome of an accepted PlayCard call.
type PlayResult struct {
	InOrder    bool      // card was the lowest held anywhere
	Voided     []Discard // hand cards skipped over by an out-of-order play
	LostLife   bool
	LevelClear bool
	Effect     string // human-readable summary for broadcast
}

// Game is one table of The Mind. It is pure state plus transitions: no
// locking, no I/O. Callers serialize access.
type Game struct {
	numPlayers int
	level      int
	lives      int
	maxLives   int
	stars      int
	maxStars   int
	status     Status
	hands      [][]int // ascending within each hand
	pile       []int   // strictly ascending

	// perm returns a permutation of [0,n); swapped out in tests for
	// deterministic deals.
	perm func(n int) []int
}

// New creates a game for the given roster size. Lives scale with the
// player count; every table starts with a single throwing star.
func New(numPlayers int) (*Game, error) {
	if numPlayers < MinPlayers || numPlayers > MaxPlayers {
		return nil, &InvalidMoveError{
			Reason: fmt.Sprintf("player count must be %d-%d, got %d", MinPlayers, MaxPlayers, numPlayers),
		}
	}

	return &Game{
		numPlayers: numPlayers,
		level:      1,
		lives:      numPlayers,
		maxLives:   numPlayers,
		stars:      1,
		maxStars:   1,
		status:     StatusSetup,
		hands:      make([][]int, numPlayers),
		perm:       rand.Perm,
	}, nil
}

// Deal sets up the current level: a fresh pile and level-many cards per
// player, drawn without replacement from the full deck.
func (g *Game) Deal() error {
	switch {
	case g.status.Terminal():
		return ErrTerminalState
	case g.status == StatusInProgress:
		return &InvalidMoveError{Reason: "level already dealt"}
	}

	g.deal()

	return nil
}

func (g *Game) deal() {
	cards := g.perm(CardMax)

	i := 0
	for p := range g.hands {
		hand := make([]int, g.level)
		for j := range hand {
			hand[j] = cards[i] + CardMin
			i++
		}
		slices.Sort(hand)
		g.hands[p] = hand
	}

	g.pile = nil
	g.status = StatusInProgress
}

// PlayCard plays a card from a player's hand onto the pile.
//
// The card always lands on the pile. If it was not the lowest card held by
// anyone, every hand card between the previous pile top and the played card
// is voided and the group loses a life.
func (g *Game) PlayCard(player, card int) (PlayResult, error) {
	if g.status.Terminal() {
		return PlayResult{}, ErrTerminalState
	}
	if g.status != StatusInProgress {
		return PlayResult{}, &InvalidMoveError{Reason: "no level in progress"}
	}
	if player < 0 || player >= g.numPlayers {
		return PlayResult{}, &InvalidMoveError{Reason: fmt.Sprintf("no such player: %d", player)}
	}

	if !slices.Contains(g.hands[player], card) {
		return PlayResult{}, &InvalidMoveError{Reason: fmt.Sprintf("card %d is not in your hand", card)}
	}

	res := PlayResult{InOrder: card == g.lowestHeld()}

	if !res.InOrder {
		top := 0
		if len(g.pile) > 0 {
			top = g.pile[len(g.pile)-1]
		}
		res.Voided = g.voidBetween(top, card)
		res.LostLife = true
		g.lives--
	}

	// Voiding never touches the played card itself, but it can shift its
	// position, so look the index up after.
	idx := slices.Index(g.hands[player], card)
	g.hands[player] = slices.Delete(g.hands[player], idx, idx+1)
	g.pile = append(g.pile, card)

	switch {
	case g.lives <= 0:
		g.status = StatusLost
	case g.handsEmpty():
		g.status = StatusLevelClear
		res.LevelClear = true
	}

	res.Effect = g.playEffect(card, res)

	return res, nil
}

// voidBetween removes every hand card in the open interval (lo, hi) and
// reports the removals in player order.
func (g *Game) voidBetween(lo, hi int) []Discard {
	var voided []Discard

	for p := range g.hands {
		kept := g.hands[p][:0]
		for _, c := range g.hands[p] {
			if c > lo && c < hi {
				voided = append(voided, Discard{Player: p, Card: c})
				continue
			}
			kept = append(kept, c)
		}
		g.hands[p] = kept
	}

	return voided
}

func (g *Game) playEffect(card int, res PlayResult) string {
	var b strings.Builder

	if res.InOrder {
		fmt.Fprintf(&b, "Card %d played", card)
	} else {
		fmt.Fprintf(&b, "Card %d played out of order! %d card(s) voided, 1 life lost", card, len(res.Voided))
	}

	switch g.status {
	case StatusLost:
		b.WriteString(". No lives remain; the game is lost")
	case StatusLevelClear:
		fmt.Fprintf(&b, ". Level %d complete", g.level)
	}

	return b.String()
}

// UseStar discards the lowest card from every nonempty hand onto the pile,
// ascending. Costs one throwing star and never a life.
func (g *Game) UseStar() ([]Discard, error) {
	if g.status.Terminal() {
		return nil, ErrTerminalState
	}
	if g.status != StatusInProgress {
		return nil, &InvalidMoveError{Reason: "no level in progress"}
	}
	if g.stars <= 0 {
		return nil, ErrNoThrowingStars
	}

	g.stars--

	var thrown []Discard
	for p := range g.hands {
		if len(g.hands[p]) == 0 {
			continue
		}
		thrown = append(thrown, Discard{Player: p, Card: g.hands[p][0]})
		g.hands[p] = g.hands[p][1:]
	}

	// Card values are unique, so this only orders by value; the stable
	// sort preserves player order as the documented tie-break.
	slices.SortStableFunc(thrown, func(a, b Discard) int {
		return a.Card - b.Card
	})

	for _, d := range thrown {
		g.pile = append(g.pile, d.Card)
	}

	// A star that empties every hand finishes the level the same way a
	// final in-order play would.
	if g.handsEmpty() {
		g.status = StatusLevelClear
	}

	return thrown, nil
}

// AdvanceLevel moves a cleared table to the next level, or to a win after
// level 12. Lives and stars carry over unchanged.
func (g *Game) AdvanceLevel() error {
	if g.status.Terminal() {
		return ErrTerminalState
	}
	if g.status != StatusLevelClear {
		return ErrLevelNotClear
	}

	g.level++
	if g.level > MaxLevel {
		g.status = StatusWon
		return nil
	}

	g.deal()

	return nil
}

func (g *Game) lowestHeld() int {
	lowest := CardMax + 1
	for _, hand := range g.hands {
		if len(hand) > 0 && hand[0] < lowest {
			lowest = hand[0]
		}
	}
	return lowest
}

func (g *Game) handsEmpty() bool {
	for _, hand := range g.hands {
		if len(hand) > 0 {
			return false
		}
	}
	return true
}

// NumPlayers returns the fixed roster size.
func (g *Game) NumPlayers() int { return g.numPlayers }

// Level returns the current level, 1-12.
func (g *Game) Level() int { return g.level }

// Lives returns the remaining shared lives.
func (g *Game) Lives() int { return g.lives }

// MaxLives returns the starting life count.
func (g *Game) MaxLives() int { return g.maxLives }

// Stars returns the remaining throwing stars.
func (g *Game) Stars() int { return g.stars }

// MaxStars returns the starting throwing star count.
func (g *Game) MaxStars() int { return g.maxStars }

// Status returns the current state machine position.
func (g *Game) Status() Status { return g.status }

// Pile returns a copy of the played pile, oldest first.
func (g *Game) Pile() []int {
	return slices.Clone(g.pile)
}

// Hand returns a copy of one player's hand, ascending, or nil for an
// unknown player.
func (g *Game) Hand(player int) []int {
	if player < 0 || player >= g.numPlayers {
		return nil
	}
	return slices.Clone(g.hands[player])
}

// HandSizes returns the card count per hand, indexed by player.
func (g *Game) HandSizes() []int {
	sizes := make([]int, g.numPlayers)
	for p, hand := range g.hands {
		sizes[p] = len(hand)
	}
	return sizes
}
