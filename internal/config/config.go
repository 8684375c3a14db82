package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/ErenAtasun/MaskHeist/internal/capability"
	"github.com/ErenAtasun/MaskHeist/internal/engine"
	"github.com/ErenAtasun/MaskHeist/internal/spawn"
)

const Prefix = "MASKHEIST_"

type Config struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`
	DatabaseURL string `env:"DATABASE_URL"`
	OutboxSize  int    `env:"OUTBOX_SIZE" envDefault:"64"`

	// OriginPatterns are extra websocket origins to accept, e.g. "localhost:*".
	OriginPatterns []string `env:"ORIGIN_PATTERNS" envSeparator:","`
	// AutoCreate lets a websocket connect start the session it names.
	AutoCreate bool `env:"AUTO_CREATE"`
	Game       Game `envPrefix:"GAME_"`
}

type Game struct {
	MinParticipants  int           `env:"MIN_PARTICIPANTS" envDefault:"2"`
	WaitingGrace     time.Duration `env:"WAITING_GRACE" envDefault:"2s"`
	SetupDuration    time.Duration `env:"SETUP_DURATION" envDefault:"3s"`
	HidingDuration   time.Duration `env:"HIDING_DURATION" envDefault:"45s"`
	BriefingDuration time.Duration `env:"BRIEFING_DURATION" envDefault:"25s"`
	SeekingDuration  time.Duration `env:"SEEKING_DURATION" envDefault:"180s"`
	RoundEndDuration time.Duration `env:"ROUND_END_DURATION" envDefault:"10s"`
	SurviveInterval  time.Duration `env:"SURVIVE_INTERVAL" envDefault:"1s"`

	ObjectiveName   string  `env:"OBJECTIVE_NAME" envDefault:"Golden Mask"`
	ObjectiveOffset float64 `env:"OBJECTIVE_OFFSET" envDefault:"2"`
	PlaceReach      float64 `env:"PLACE_REACH" envDefault:"3"`
	FindDistance    float64 `env:"FIND_DISTANCE" envDefault:"3"`
	FindTolerance   float64 `env:"FIND_TOLERANCE" envDefault:"1.5"`
	MaxMoveStep     float64 `env:"MAX_MOVE_STEP" envDefault:"3"`

	SpawnMode     string `env:"SPAWN_MODE" envDefault:"round_robin"`
	SpawnFallback Pose   `env:"SPAWN_FALLBACK" envDefault:"0,1,0"`
	HiderSpawns   []Pose `env:"SPAWN_HIDER" envSeparator:";"`
	SeekerSpawns  []Pose `env:"SPAWN_SEEKER" envSeparator:";"`

	Scores       Scores       `envPrefix:"SCORE_"`
	Capabilities Capabilities `envPrefix:"CAP_"`
	Traps        Traps        `envPrefix:"TRAP_"`
	Weapon       Weapon       `envPrefix:"WEAPON_"`
	Effects      Effects      `envPrefix:"EFFECT_"`
}

type Scores struct {
	Hide           int `env:"HIDE" envDefault:"100"`
	Find           int `env:"FIND" envDefault:"200"`
	Catch          int `env:"CATCH" envDefault:"150"`
	SurvivePerTick int `env:"SURVIVE" envDefault:"5"`
}

func (s Scores) Points() engine.Points {
	return engine.Points{Hide: s.Hide, Find: s.Find, Catch: s.Catch, SurvivePerTick: s.SurvivePerTick}
}

type Timing struct {
	Duration time.Duration `env:"DURATION"`
	Cooldown time.Duration `env:"COOLDOWN"`
}

type Capabilities struct {
	Invisibility Timing `envPrefix:"INVISIBILITY_"`
	Unique       Timing `envPrefix:"UNIQUE_"`
}

type Traps struct {
	PerRound       int           `env:"PER_ROUND" envDefault:"1"`
	ArmingDelay    time.Duration `env:"ARMING_DELAY" envDefault:"2s"`
	TriggerRadius  float64       `env:"TRIGGER_RADIUS" envDefault:"1.5"`
	MineRadius     float64       `env:"MINE_RADIUS" envDefault:"5"`
	StunDuration   time.Duration `env:"STUN_DURATION" envDefault:"3s"`
	RevealDuration time.Duration `env:"REVEAL_DURATION" envDefault:"5s"`
}

type Weapon struct {
	StartingAmmo int           `env:"STARTING_AMMO" envDefault:"3"`
	MaxAmmo      int           `env:"MAX_AMMO" envDefault:"10"`
	FireInterval time.Duration `env:"FIRE_INTERVAL" envDefault:"500ms"`
	Range        float64       `env:"RANGE" envDefault:"50"`
	HitRadius    float64       `env:"HIT_RADIUS" envDefault:"0.75"`

	// Pickups are ammo boxes placed at the start of every round.
	Pickups      []Pose  `env:"PICKUPS" envSeparator:";"`
	PickupAmount int     `env:"PICKUP_AMOUNT" envDefault:"2"`
	PickupReach  float64 `env:"PICKUP_REACH" envDefault:"3"`
}

type Effects struct {
	SprintMultiplier float64 `env:"SPRINT_MULTIPLIER" envDefault:"1.5"`
	ScanRadius       float64 `env:"SCAN_RADIUS" envDefault:"15"`
	TrackRadius      float64 `env:"TRACK_RADIUS" envDefault:"20"`
	DisruptRadius    float64 `env:"DISRUPT_RADIUS" envDefault:"8"`
}

// Spec returns the configured timing for kind. Trap, stun, reveal and weapon
// timings come from their own sections.
func (g Game) Spec(kind capability.Kind) capability.Spec {
	switch kind {
	case capability.KindInvisibility:
		return capability.Spec(g.Capabilities.Invisibility)
	case capability.KindTrap:
		return capability.Spec{Duration: g.Traps.ArmingDelay}
	case capability.KindStun:
		return capability.Spec{Duration: g.Traps.StunDuration}
	case capability.KindReveal:
		return capability.Spec{Duration: g.Traps.RevealDuration}
	case capability.KindWeapon:
		return capability.Spec{Cooldown: g.Weapon.FireInterval}
	}
	return capability.Spec(g.Capabilities.Unique)
}

// Pose parses "x,y,z" or "x,y,z,yaw" with yaw in degrees.
type Pose engine.Pose

func (p *Pose) UnmarshalText(text []byte) error {
	parts := strings.Split(strings.TrimSpace(string(text)), ",")
	if len(parts) != 3 && len(parts) != 4 {
		return fmt.Errorf("pose %q: want x,y,z[,yaw]", text)
	}
	var v [4]float64
	for i, s := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("pose %q: %w", text, err)
		}
		v[i] = f
	}
	*p = Pose{Position: engine.Vec3{X: v[0], Y: v[1], Z: v[2]}, Yaw: v[3] * math.Pi / 180}
	return nil
}

func (p Pose) Engine() engine.Pose { return engine.Pose(p) }

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{Prefix: Prefix})
}

// Parse reads configuration from environ only. Keys carry the MASKHEIST_
// prefix.
func Parse(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

// Default is the configuration with nothing set.
func Default() Config {
	cfg, err := Parse(map[string]string{})
	if err != nil {
		panic(err)
	}
	return cfg
}

func parse(opts env.Options) (Config, error) {
	// Both timings share one struct type, so their defaults are set here
	// rather than in tags.
	cfg := Config{Game: Game{Capabilities: Capabilities{
		Invisibility: Timing{Duration: 5 * time.Second, Cooldown: 45 * time.Second},
		Unique:       Timing{Duration: 5 * time.Second, Cooldown: 60 * time.Second},
	}}}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	g := c.Game
	switch {
	case g.MinParticipants < 1:
		return errors.New("config: min participants must be at least 1")
	case c.OutboxSize < 1:
		return errors.New("config: outbox size must be at least 1")
	case g.SurviveInterval <= 0:
		return errors.New("config: survive interval must be positive")
	case g.Weapon.StartingAmmo > g.Weapon.MaxAmmo:
		return errors.New("config: starting ammo exceeds max ammo")
	case g.Weapon.PickupAmount < 1:
		return errors.New("config: ammo pickup amount must be at least 1")
	case g.SpawnMode != string(spawn.ModeRoundRobin) && g.SpawnMode != string(spawn.ModeRandom):
		return fmt.Errorf("config: unknown spawn mode %q", g.SpawnMode)
	}
	return nil
}
