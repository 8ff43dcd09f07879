package game

import (
	"math/rand"
	"sync"
)

const (
	FieldWidth   = 800
	FieldHeight  = 400
	PaddleWidth  = 10
	PaddleHeight = 100
	WinningScore = 11
)

type Paddle struct {
	Y     float64 `json:"y"`
	Score int     `json:"score"`
}

// Frame is one broadcast snapshot of the match.
type Frame struct {
	Ball  Ball   `json:"ball"`
	Left  Paddle `json:"left"`
	Right Paddle `json:"right"`
	Over  bool   `json:"over"`
}

// Match is the server-side pong state for two players. The websocket layer
// drives Tick from a ticker and MovePaddle from player input; all state is
// guarded here.
type Match struct {
	mu    sync.Mutex
	ball  *Ball
	left  Paddle
	right Paddle
	over  bool
	rng   *rand.Rand
}

func NewMatch(seed int64) *Match {
	rng := rand.New(rand.NewSource(seed))
	m := &Match{
		rng:   rng,
		ball:  NewBall(FieldWidth, FieldHeight, rng),
		left:  Paddle{Y: (FieldHeight - PaddleHeight) / 2},
		right: Paddle{Y: (FieldHeight - PaddleHeight) / 2},
	}
	return m
}

// MovePaddle sets a player's paddle position, clamped to the field.
func (m *Match) MovePaddle(side Side, y float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if y < 0 {
		y = 0
	}
	if y > FieldHeight-PaddleHeight {
		y = FieldHeight - PaddleHeight
	}
	switch side {
	case SideLeft:
		m.left.Y = y
	case SideRight:
		m.right.Y = y
	}
}

// Tick advances the simulation one step and returns the frame to broadcast.
func (m *Match) Tick() Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.over {
		m.collidePaddles()
		switch m.ball.Step(FieldWidth, FieldHeight) {
		case SideLeft:
			m.right.Score++
			m.ball.Reset(FieldWidth, FieldHeight, m.rng)
		case SideRight:
			m.left.Score++
			m.ball.Reset(FieldWidth, FieldHeight, m.rng)
		}
		if m.left.Score >= WinningScore || m.right.Score >= WinningScore {
			m.over = true
			m.ball.Stop = true
		}
	}

	return Frame{
		Ball:  *m.ball,
		Left:  m.left,
		Right: m.right,
		Over:  m.over,
	}
}

func (m *Match) collidePaddles() {
	b := m.ball
	if b.VelocityX < 0 &&
		b.X-b.Radius <= PaddleWidth &&
		b.Y >= m.left.Y && b.Y <= m.left.Y+PaddleHeight {
		b.X = PaddleWidth + b.Radius
		b.BounceOffPaddle()
	}
	if b.VelocityX > 0 &&
		b.X+b.Radius >= FieldWidth-PaddleWidth &&
		b.Y >= m.right.Y && b.Y <= m.right.Y+PaddleHeight {
		b.X = FieldWidth - PaddleWidth - b.Radius
		b.BounceOffPaddle()
	}
}

// Over reports whether the match has ended.
func (m *Match) Over() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.over
}
