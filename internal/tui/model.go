package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"rosenkoenig/internal/client"
	"rosenkoenig/internal/game"
	"rosenkoenig/internal/interaction"
	"rosenkoenig/internal/models"
)

const forfeitTimeout = 10 * time.Second

type stateChangedMsg struct{}

type noticeMsg string

type forfeitDoneMsg struct {
	err error
}

// Model is the game screen
type Model struct {
	game    *client.Game
	keys    KeyMap
	spinner spinner.Model

	cardIndex      int
	notice         string
	confirmForfeit bool

	changes chan struct{}
	notices chan string
}

// NewModel creates a screen for g. The game should already be open.
func NewModel(g *client.Game) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(primaryColor))

	m := Model{
		game:      g,
		keys:      DefaultKeyMap,
		spinner:   sp,
		cardIndex: -1,
		changes:   make(chan struct{}, 1),
		notices:   make(chan string, 8),
	}

	g.OnChange(func() {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	g.OnNotify(func(msg string) {
		select {
		case m.notices <- msg:
		default:
		}
	})
	return m
}

// Run starts the program in the alternate screen
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return stateChangedMsg{}
	}
}

func waitForNotice(ch <-chan string) tea.Cmd {
	return func() tea.Msg {
		return noticeMsg(<-ch)
	}
}

// Init starts the spinner and the listeners for game updates
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChange(m.changes), waitForNotice(m.notices))
}

// Update handles input and game updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateChangedMsg:
		m.clampCard()
		return m, waitForChange(m.changes)

	case noticeMsg:
		m.notice = string(msg)
		return m, waitForNotice(m.notices)

	case forfeitDoneMsg:
		if msg.err != nil {
			m.notice = game.Describe(msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctrl := m.game.Controller()

	if m.confirmForfeit {
		m.confirmForfeit = false
		if key.Matches(msg, m.keys.Confirm) {
			return m, m.forfeit()
		}
		m.notice = ""
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		ctrl.HandleKey(interaction.KeyUp)
	case key.Matches(msg, m.keys.Down):
		ctrl.HandleKey(interaction.KeyDown)
	case key.Matches(msg, m.keys.Left):
		ctrl.HandleKey(interaction.KeyLeft)
	case key.Matches(msg, m.keys.Right):
		ctrl.HandleKey(interaction.KeyRight)
	case key.Matches(msg, m.keys.Enter):
		m.notice = ""
		ctrl.HandleKey(interaction.KeyEnter)
		m.cardIndex = -1
	case key.Matches(msg, m.keys.Escape):
		ctrl.HandleKey(interaction.KeyEscape)
		m.cardIndex = -1
	case key.Matches(msg, m.keys.NextCard):
		m.cycleCard(1)
	case key.Matches(msg, m.keys.PrevCard):
		m.cycleCard(-1)
	case key.Matches(msg, m.keys.Forfeit):
		m.confirmForfeit = true
		m.notice = "Forfeit this game? Press y to confirm."
	}
	return m, nil
}

func (m Model) forfeit() tea.Cmd {
	g := m.game
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), forfeitTimeout)
		defer cancel()
		return forfeitDoneMsg{err: g.Forfeit(ctx)}
	}
}

func (m *Model) hand() []models.Card {
	return m.game.State().Deck.Hand(m.game.Seat())
}

func (m *Model) cycleCard(step int) {
	hand := m.hand()
	if len(hand) == 0 {
		m.cardIndex = -1
		return
	}
	m.cardIndex = (m.cardIndex + step + len(hand)) % len(hand)
	m.game.Controller().SelectCard(hand[m.cardIndex])
}

func (m *Model) clampCard() {
	if m.cardIndex >= len(m.hand()) {
		m.cardIndex = -1
	}
}

// View renders the screen
func (m Model) View() string {
	st := m.game.State()
	if st.Session == nil {
		return titleStyle.Render("Rosenkönig") + "\n\n" + dimStyle.Render("Loading game…") + "\n"
	}
	v := m.game.Controller().View()

	var b strings.Builder
	b.WriteString(titleStyle.Render("Rosenkönig"))
	b.WriteString("  ")
	b.WriteString(dimStyle.Render(st.Session.ID))
	b.WriteString("\n")
	b.WriteString(statusLine(st.Session, m.game.Seat()))
	b.WriteString("\n\n")
	b.WriteString(boardStyle.Render(RenderBoard(st.Board, v)))
	b.WriteString("\n")
	b.WriteString(RenderHand(m.hand(), v.Selected))
	b.WriteString("\n")
	b.WriteString(RenderTally(st))
	b.WriteString("\n\n")

	if m.game.Pending() {
		b.WriteString(m.spinner.View())
		b.WriteString(" checking move…\n")
	}
	if m.game.Offline() {
		b.WriteString(m.spinner.View())
		b.WriteString(" reconnecting…\n")
	}
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(helpLine(m.keys))
	return b.String()
}

func statusLine(s *models.Session, seat models.Seat) string {
	score := fmt.Sprintf("%s %d  %s %d",
		seatAStyle.Render("A"), s.ScoreA,
		seatBStyle.Render("B"), s.ScoreB,
	)

	var status string
	switch s.Status {
	case models.StatusWaiting:
		status = "waiting for an opponent"
	case models.StatusPlaying:
		if s.Turn == seat {
			status = "your turn"
		} else {
			status = "opponent's turn"
		}
	case models.StatusFinished:
		switch {
		case s.IsDraw():
			status = "draw"
		case s.Winner == seat:
			status = "you won"
		case seat.Valid():
			status = "you lost"
		default:
			status = "seat " + string(s.Winner) + " won"
		}
	}

	you := "watching"
	if seat.Valid() {
		you = "you are " + string(seat)
	}
	return score + "  " + dimStyle.Render("·") + "  " + status + "  " + dimStyle.Render("("+you+")")
}

// crownTrail is how many recent crown positions the tally shows
const crownTrail = 6

// RenderTally summarizes the board and move log: stones held, captures
// made, the last move and where the crown has recently stood
func RenderTally(st client.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "stones %s %d %s %d  %s  flips %s %d %s %d",
		seatAStyle.Render("A"), st.Board.Count(models.SeatA),
		seatBStyle.Render("B"), st.Board.Count(models.SeatB),
		dimStyle.Render("·"),
		seatAStyle.Render("A"), st.Moves.Flips(models.SeatA),
		seatBStyle.Render("B"), st.Moves.Flips(models.SeatB),
	)

	if last, ok := st.Moves.Last(); ok {
		card := "?"
		if c, found := st.Deck.Find(last.CardID); found {
			card = game.Label(c)
		}
		verb := "placed"
		if last.Flip {
			verb = "flipped"
		}
		fmt.Fprintf(&b, "\nlast  %s %s %s %s", last.Actor, card, verb, coordLabel(last.To))
	}

	path := st.Moves.CrownPath()
	prefix := ""
	if len(path) > crownTrail {
		path = path[len(path)-crownTrail:]
		prefix = "… "
	}
	steps := make([]string, len(path))
	for i, c := range path {
		steps[i] = coordLabel(c)
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("crown " + prefix + strings.Join(steps, " → ")))
	return b.String()
}

func coordLabel(c models.Coord) string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// RenderBoard draws the grid with the crown, the provisional targets and the
// keyboard cursor
func RenderBoard(board game.Board, v interaction.View) string {
	var b strings.Builder
	for y := 0; y < models.BoardSize; y++ {
		for x := 0; x < models.BoardSize; x++ {
			c := models.Coord{X: x, Y: y}
			cell := renderCell(board, c)

			switch {
			case c == v.Cursor:
				cell = cursorStyle.Render(cell)
			case v.Highlighted(c):
				cell = hintStyle.Render(cell)
			}
			b.WriteString(cell)
		}
		if y < models.BoardSize-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderCell(board game.Board, c models.Coord) string {
	glyph := " · "
	style := emptyStyle
	switch board.Owner(c) {
	case models.SeatA:
		glyph, style = " ● ", seatAStyle
	case models.SeatB:
		glyph, style = " ● ", seatBStyle
	}
	if board.Crown() == c {
		glyph = " ♛ "
	}
	return style.Render(glyph)
}

// RenderHand lists the playable cards, marking the selected one
func RenderHand(hand []models.Card, selected *models.Card) string {
	if len(hand) == 0 {
		return dimStyle.Render("no cards left")
	}
	labels := make([]string, len(hand))
	for i, c := range hand {
		label := game.Label(c)
		if selected != nil && selected.ID == c.ID {
			label = selectedCardStyle.Render(label)
		}
		labels[i] = label
	}
	return "cards: " + strings.Join(labels, " ")
}

func helpLine(k KeyMap) string {
	parts := make([]string, 0, len(k.help()))
	for _, b := range k.help() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return dimStyle.Render(strings.Join(parts, " • "))
}
