package game

import "math/rand"

const (
	BallRadius = 20
	BallSpeed  = 50

	// Serve velocity: horizontal is fixed magnitude, vertical is drawn from
	// [MinServeVY, MaxServeVY) with a random sign so serves stay playable but
	// never perfectly flat.
	ServeVX    = 5
	MinServeVY = 2
	MaxServeVY = 5
)

type Ball struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Radius    float64 `json:"radius"`
	Speed     float64 `json:"speed"`
	VelocityX float64 `json:"velocity_x"`
	VelocityY float64 `json:"velocity_y"`
	Stop      bool    `json:"stop"`
}

// NewBall spawns a ball at the center of the field with a randomized serve
// direction.
func NewBall(width, height float64, rng *rand.Rand) *Ball {
	b := &Ball{
		X:      width / 2,
		Y:      height / 2,
		Radius: BallRadius,
		Speed:  BallSpeed,
	}
	b.serve(rng)
	return b
}

func (b *Ball) serve(rng *rand.Rand) {
	b.VelocityX = ServeVX
	if rng.Float64() > 0.5 {
		b.VelocityX = -ServeVX
	}
	vy := MinServeVY + rng.Float64()*(MaxServeVY-MinServeVY)
	if rng.Float64() > 0.5 {
		vy = -vy
	}
	b.VelocityY = vy
}

// Side names which edge the ball crossed.
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

// Step advances the ball one tick, bouncing off the top and bottom walls.
// Returns the side the ball left the field on, if any; the caller scores the
// point and calls Reset.
func (b *Ball) Step(width, height float64) Side {
	if b.Stop {
		return SideNone
	}
	b.X += b.VelocityX
	b.Y += b.VelocityY

	if b.Y-b.Radius < 0 {
		b.Y = b.Radius
		b.VelocityY = -b.VelocityY
	} else if b.Y+b.Radius > height {
		b.Y = height - b.Radius
		b.VelocityY = -b.VelocityY
	}

	if b.X+b.Radius < 0 {
		return SideLeft
	}
	if b.X-b.Radius > width {
		return SideRight
	}
	return SideNone
}

// Reset recenters the ball and serves again.
func (b *Ball) Reset(width, height float64, rng *rand.Rand) {
	b.X = width / 2
	b.Y = height / 2
	b.serve(rng)
}

// BounceOffPaddle reverses the horizontal direction, keeping the vertical
// component. Called by the match loop on paddle contact.
func (b *Ball) BounceOffPaddle() {
	b.VelocityX = -b.VelocityX
}
