package play

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gigurra/soundstage/cmd/engine/queue"
	"github.com/gigurra/soundstage/cmd/engine/store"
	"github.com/gigurra/soundstage/cmd/engine/visual"
	"github.com/mattn/go-runewidth"
	"github.com/samber/lo"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	artistStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	playingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	searchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	badgeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

const (
	frameInterval = time.Second / 15
	visualRows    = 8
	listRows      = 10
)

type (
	stateMsg  store.PlayerState
	frameMsg  time.Time
	closedMsg struct{}
)

type model struct {
	ctx     context.Context
	player  *store.Store
	sub     *store.Subscription
	loop    *visual.Loop
	screen  *screen
	profile visual.Profile

	state  store.PlayerState
	cursor int

	filter    string
	filtering bool
	status    string
	failed    bool

	width, height int

	notify func(title, body string)
	copy   func(text string) error
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitState(m.sub), frameTick())
}

func waitState(sub *store.Subscription) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-sub.C
		if !ok {
			return closedMsg{}
		}
		return stateMsg(st)
	}
}

func frameTick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		prev := m.state.CurrentTrack
		m.state = store.PlayerState(msg)
		if m.loop != nil {
			m.loop.SetActive(m.state.IsPlaying)
		}
		if cur := m.state.CurrentTrack; cur != nil && (prev == nil || prev.ID != cur.ID) && m.notify != nil {
			m.notify("Now playing", trackLine(*cur))
		}
		m = m.clampCursor()
		return m, waitState(m.sub)

	case closedMsg:
		return m, tea.Quit

	case frameMsg:
		return m, frameTick()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.screen != nil {
			m.screen.resize(max(msg.Width-4, 16), visualRows)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	// playback shortcuts go first; the store ignores them while the filter has focus
	if m.player.HandleKey(m.ctx, store.KeyEvent{Key: store.ParseKey(key), InTextInput: m.filtering}) {
		return m, nil
	}

	if m.filtering {
		switch key {
		case "esc":
			if m.filter != "" {
				m.filter = ""
			} else {
				m.filtering = false
			}
		case "enter":
			m.filtering = false
		case "backspace":
			if r := []rune(m.filter); len(r) > 0 {
				m.filter = string(r[:len(r)-1])
			}
		case "ctrl+u":
			m.filter = ""
		default:
			switch msg.Type {
			case tea.KeyRunes:
				m.filter += string(msg.Runes)
			case tea.KeySpace:
				m.filter += " "
			}
		}
		return m.clampCursor(), nil
	}

	var err error
	switch key {
	case "q":
		return m, tea.Quit
	case "esc":
		m.filter = ""
	case "/":
		m.filtering = true
	case "n":
		err = m.player.NextTrack(m.ctx)
	case "p":
		err = m.player.PrevTrack(m.ctx)
	case "s":
		m.player.ToggleShuffle()
	case "r":
		m.player.ToggleRepeat()
	case "a":
		m.player.SetAutoplay(!m.state.Autoplay)
	case "x":
		m.player.Stop()
	case "v":
		if m.loop != nil {
			next := visual.NextMode(m.loop.Mode(), m.profile)
			err = m.loop.SetMode(next)
			m.setStatus("visualizer: "+string(next), nil)
		}
	case "c":
		if cur := m.state.CurrentTrack; cur != nil && m.copy != nil {
			cerr := m.copy(cur.SourceURI)
			m.setStatus("copied "+cur.SourceURI, cerr)
		}
	case "k":
		m.cursor--
	case "j":
		m.cursor++
	case "enter":
		if idx, ok := m.selected(); ok {
			err = m.player.PlayIndex(m.ctx, idx)
		}
	case "d", "delete":
		if idx, ok := m.selected(); ok {
			err = m.player.RemoveFromQueue(m.ctx, idx)
		}
	}
	if err != nil {
		m.setStatus("", err)
	}
	return m.clampCursor(), nil
}

func (m *model) setStatus(s string, err error) {
	if err != nil {
		m.status, m.failed = err.Error(), true
		return
	}
	m.status, m.failed = s, false
}

// visible returns the queue indices matching the filter.
func (m model) visible() []int {
	idx := lo.Range(len(m.state.Queue))
	if m.filter == "" {
		return idx
	}
	q := strings.ToLower(m.filter)
	return lo.Filter(idx, func(i int, _ int) bool {
		t := m.state.Queue[i]
		return strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Artist), q)
	})
}

func (m model) selected() (int, bool) {
	vis := m.visible()
	if m.cursor < 0 || m.cursor >= len(vis) {
		return 0, false
	}
	return vis[m.cursor], true
}

func (m model) clampCursor() model {
	m.cursor = lo.Clamp(m.cursor, 0, max(len(m.visible())-1, 0))
	return m
}

func trackLine(t queue.Track) string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

// clock formats seconds as m:ss; unknown durations show as --:--.
func clock(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "--:--"
	}
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func progressBar(pos, dur float64, width int) string {
	if width < 3 {
		return ""
	}
	filled := 0
	if dur > 0 && !math.IsNaN(dur) {
		filled = int(lo.Clamp(pos/dur, 0, 1) * float64(width))
	}
	return strings.Repeat("━", filled) + helpStyle.Render(strings.Repeat("─", width-filled))
}

func (m model) View() string {
	width := m.width
	if width < 20 {
		width = 80
	}
	st := m.state
	var b strings.Builder

	b.WriteString("\n  ")
	if cur := st.CurrentTrack; cur != nil {
		icon := lo.Ternary(st.IsPlaying, playingStyle.Render("▶"), "⏸")
		b.WriteString(icon + " " + titleStyle.Render(runewidth.Truncate(cur.Title, width/2, "…")))
		if cur.Artist != "" {
			b.WriteString("  " + artistStyle.Render(runewidth.Truncate(cur.Artist, width/3, "…")))
		}
	} else {
		b.WriteString(helpStyle.Render("nothing playing"))
	}
	b.WriteString("\n  ")
	b.WriteString(progressBar(st.CurrentTime, st.Duration, min(width-20, 60)))
	b.WriteString(fmt.Sprintf(" %s / %s\n", clock(st.CurrentTime), clock(st.Duration)))

	vol := fmt.Sprintf("vol %3.0f%%", st.Volume*100)
	if st.IsMuted {
		vol = "muted"
	}
	flags := []string{vol, fmt.Sprintf("%.2gx", st.PlaybackRate), "repeat " + st.RepeatMode.String()}
	if st.Shuffle {
		flags = append(flags, "shuffle")
	}
	if st.Autoplay {
		flags = append(flags, "autoplay")
	}
	if m.loop != nil {
		flags = append(flags, string(m.loop.Mode()))
	}
	b.WriteString("  " + badgeStyle.Render(strings.Join(flags, " · ")) + "\n\n")

	if m.screen != nil {
		for _, line := range strings.Split(strings.TrimRight(m.screen.String(), "\n"), "\n") {
			b.WriteString("  " + line + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("  ")
	switch {
	case m.filtering:
		b.WriteString(searchStyle.Render("Filter: [" + m.filter + "_]"))
	case m.filter != "":
		b.WriteString(searchStyle.Render("Filter: [" + m.filter + "]"))
	default:
		b.WriteString(helpStyle.Render("/ to filter"))
	}
	vis := m.visible()
	if len(vis) != len(st.Queue) {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  [showing %d of %d]", len(vis), len(st.Queue))))
	} else {
		b.WriteString(helpStyle.Render(fmt.Sprintf("  [%d tracks]", len(st.Queue))))
	}
	b.WriteString("\n")

	start := max(0, min(m.cursor-listRows/2, len(vis)-listRows))
	for row, i := range vis[start:min(len(vis), start+listRows)] {
		t := st.Queue[i]
		mark := "  "
		if st.CurrentTrack != nil && st.CurrentTrack.ID == t.ID {
			mark = "♪ "
		}
		line := fmt.Sprintf("%s%3d  %s", mark, i+1, runewidth.Truncate(trackLine(t), width-12, "…"))
		if start+row == m.cursor {
			b.WriteString("  " + selectedStyle.Render(line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	b.WriteString("\n  ")
	if m.status != "" {
		style := lo.Ternary(m.failed, errorStyle, helpStyle)
		b.WriteString(style.Render(m.status) + "\n  ")
	}
	b.WriteString(helpStyle.Render("space play • ←/→ seek • ↑/↓ volume • m mute • n/p next/prev • j/k select • s shuffle • r repeat • a autoplay • v visual • c copy • q quit"))
	b.WriteString("\n")
	return b.String()
}
