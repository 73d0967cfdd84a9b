package game

import (
	"sort"
	"strconv"

	"rosenkoenig/internal/models"
)

// cardTemplate is one entry of the starting deck, before it is issued to a seat
type cardTemplate struct {
	kind  models.CardKind
	dx    int
	dy    int
	steps int
}

// directions in clockwise order starting north
var directions = [8][2]int{
	{0, -1}, {1, -1}, {1, 0}, {1, 1},
	{0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

// startingTemplates is the fixed card set each side receives: every direction at
// one, two and three steps, plus four orthogonal hero cards.
var startingTemplates = func() []cardTemplate {
	var templates []cardTemplate
	for steps := 1; steps <= 3; steps++ {
		for _, d := range directions {
			templates = append(templates, cardTemplate{kind: models.CardInfluence, dx: d[0], dy: d[1], steps: steps})
		}
	}
	for i := 0; i < len(directions); i += 2 {
		d := directions[i]
		templates = append(templates, cardTemplate{kind: models.CardHero, dx: d[0], dy: d[1], steps: 1})
	}
	return templates
}()

// DeckSize is the number of cards each side starts with
var DeckSize = len(startingTemplates)

// StartingDeck issues the mirrored starting cards for both seats. newID
// supplies card identifiers.
func StartingDeck(sessionID string, newID func() string) []models.Card {
	cards := make([]models.Card, 0, 2*len(startingTemplates))
	for _, seat := range []models.Seat{models.SeatA, models.SeatB} {
		for pos, tpl := range startingTemplates {
			cards = append(cards, models.Card{
				ID:        newID(),
				SessionID: sessionID,
				Owner:     seat,
				Kind:      tpl.kind,
				DX:        tpl.dx,
				DY:        tpl.dy,
				Steps:     tpl.steps,
				Position:  pos,
			})
		}
	}
	return cards
}

// Deck holds both seats' cards in their stable deck order
type Deck struct {
	bySeat map[models.Seat][]models.Card
}

// NewDeck normalizes a card collection into per-seat ordered decks
func NewDeck(cards []models.Card) Deck {
	d := Deck{bySeat: map[models.Seat][]models.Card{}}
	for _, c := range cards {
		d.bySeat[c.Owner] = append(d.bySeat[c.Owner], c)
	}
	for seat := range d.bySeat {
		sort.SliceStable(d.bySeat[seat], func(i, j int) bool {
			return d.bySeat[seat][i].Position < d.bySeat[seat][j].Position
		})
	}
	return d
}

// Cards returns every card of seat in deck order, used or not
func (d Deck) Cards(seat models.Seat) []models.Card {
	return append([]models.Card(nil), d.bySeat[seat]...)
}

// Hand returns the unused cards of seat in deck order
func (d Deck) Hand(seat models.Seat) []models.Card {
	var hand []models.Card
	for _, c := range d.bySeat[seat] {
		if !c.Used {
			hand = append(hand, c)
		}
	}
	return hand
}

// Find looks a card up by id
func (d Deck) Find(id string) (models.Card, bool) {
	for _, cards := range d.bySeat {
		for _, c := range cards {
			if c.ID == id {
				return c, true
			}
		}
	}
	return models.Card{}, false
}

// Len returns the total number of cards across both seats
func (d Deck) Len() int {
	n := 0
	for _, cards := range d.bySeat {
		n += len(cards)
	}
	return n
}

func arrow(dx, dy int) string {
	names := map[[2]int]string{
		{0, -1}: "N", {1, -1}: "NE", {1, 0}: "E", {1, 1}: "SE",
		{0, 1}: "S", {-1, 1}: "SW", {-1, 0}: "W", {-1, -1}: "NW",
	}
	if n, ok := names[[2]int{dx, dy}]; ok {
		return n
	}
	return "?"
}

// Label is the short card caption used by clients
func Label(c models.Card) string {
	prefix := ""
	if c.Kind == models.CardHero {
		prefix = "H"
	}
	return prefix + arrow(c.DX, c.DY) + strconv.Itoa(c.Steps)
}
