package session

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ErenAtasun/MaskHeist/internal/capability"
	"github.com/ErenAtasun/MaskHeist/internal/config"
	"github.com/ErenAtasun/MaskHeist/internal/engine"
	"github.com/ErenAtasun/MaskHeist/internal/replication"
	"github.com/ErenAtasun/MaskHeist/internal/roles"
	"github.com/ErenAtasun/MaskHeist/internal/sched"
	"github.com/ErenAtasun/MaskHeist/internal/spawn"
	"github.com/ErenAtasun/MaskHeist/internal/wincond"
	"github.com/ErenAtasun/MaskHeist/pkg/types"
)

type RoleAssigner interface {
	Assign(ids []string) (roles.Assignment, error)
}

type Deps struct {
	Config config.Game
	Log    *zap.Logger
	Out    replication.Adapter
	Spawns spawn.Provider
	Roles  RoleAssigner
	NewID  func() string
	// OnRound receives every finished round.
	OnRound func(engine.RoundSummary)
}

type trap struct {
	ID       string
	Kind     engine.TrapKind
	Position engine.Vec3
	PlacedBy string
}

// Machine is the authoritative state of one session. Every method takes the
// current time and nothing inside reads a clock, so the owner decides what
// "now" is. Not safe for concurrent use.
type Machine struct {
	cfg     config.Game
	points  engine.Points
	log     *zap.Logger
	out     replication.Adapter
	spawns  spawn.Provider
	roles   RoleAssigner
	newID   func() string
	onRound func(engine.RoundSummary)

	queue *sched.Queue
	caps  *capability.Engine

	phase      engine.Phase
	deadline   time.Time
	round      int
	roundStart time.Time
	phaseToken sched.Token
	graceToken sched.Token
	tickToken  sched.Token

	participants map[string]*engine.Participant
	order        []string
	objective    *engine.Objective
	ledger       engine.ScoreLedger
	race         *wincond.Race
	outcome      *wincond.Outcome
	traps        map[string]*trap
	disruptors   map[string]engine.Vec3
	pickups      map[string]engine.Vec3
}

func NewMachine(d Deps, now time.Time) (*Machine, error) {
	if d.Out == nil {
		return nil, &engine.Error{Code: engine.CodeMissingCollaborator, Message: "replication adapter is required"}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Roles == nil {
		a, err := roles.NewRandomAssigner()
		if err != nil {
			return nil, err
		}
		d.Roles = a
	}
	if d.NewID == nil {
		d.NewID = uuid.NewString
	}
	m := &Machine{
		cfg:          d.Config,
		points:       d.Config.Scores.Points(),
		log:          d.Log,
		out:          d.Out,
		spawns:       d.Spawns,
		roles:        d.Roles,
		newID:        d.NewID,
		onRound:      d.OnRound,
		queue:        sched.New(),
		phase:        engine.PhaseWaiting,
		participants: map[string]*engine.Participant{},
		traps:        map[string]*trap{},
		disruptors:   map[string]engine.Vec3{},
		pickups:      map[string]engine.Vec3{},
	}
	m.caps = capability.New(m.queue, capHooks{m})
	m.publishPhase()
	m.publishScore()
	return m, nil
}

// Advance runs everything due at or before now.
func (m *Machine) Advance(now time.Time) {
	m.queue.RunDue(now)
}

// NextDeadline is when Advance next has work to do.
func (m *Machine) NextDeadline() (time.Time, bool) {
	return m.queue.Next()
}

func (m *Machine) Phase() engine.Phase { return m.phase }
func (m *Machine) Round() int          { return m.round }

func (m *Machine) Join(now time.Time, id, name string) (*engine.Participant, error) {
	m.Advance(now)
	if id == "" {
		return nil, engine.Invalid(engine.ReasonMalformed, "participant id is required")
	}
	if _, ok := m.participants[id]; ok {
		return nil, engine.Invalid(engine.ReasonMalformed, "participant %s already joined", id)
	}
	if name == "" {
		name = "player-" + id[:min(8, len(id))]
	}
	p := engine.NewParticipant(id, name, now)
	m.participants[id] = p
	m.order = append(m.order, id)
	m.publishParticipant(p)
	m.log.Info("participant joined",
		zap.String("participant", id),
		zap.String("name", name),
		zap.Int("participants", len(m.participants)))
	m.maybeStartGrace(now)
	return p, nil
}

// Leave removes a participant. A Hider leaving mid-round hands the round to
// the Seekers at once.
func (m *Machine) Leave(now time.Time, id string) bool {
	m.Advance(now)
	p, ok := m.participants[id]
	if !ok {
		return false
	}
	delete(m.participants, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	for _, inst := range m.caps.OwnedBy(id) {
		m.caps.Remove(inst.ID)
	}
	m.out.Broadcast(replication.ParticipantField(id), nil)
	m.log.Info("participant left",
		zap.String("participant", id),
		zap.String("role", string(p.Role)),
		zap.String("phase", string(m.phase)),
		zap.Int("participants", len(m.participants)))

	switch {
	case m.phase == engine.PhaseWaiting:
		if len(m.participants) < m.cfg.MinParticipants {
			m.cancelGrace()
		}
	case m.phase == engine.PhaseSetup:
		if p.Role == engine.RoleHider || len(m.participants) < m.cfg.MinParticipants {
			m.prepareRound(now)
		}
	case m.phase.InRound() && p.Role == engine.RoleHider:
		m.log.Warn("hider lost mid-round",
			zap.String("participant", id),
			zap.String("code", string(engine.CodeParticipantLoss)))
		m.forfeit(now, engine.RoleSeeker, wincond.ReasonHiderLeft)
	case m.phase == engine.PhaseSeeking && p.Role == engine.RoleSeeker:
		m.checkSeekers(now)
	}
	return true
}

func (m *Machine) maybeStartGrace(now time.Time) {
	if m.phase != engine.PhaseWaiting || m.graceToken != 0 || len(m.participants) < m.cfg.MinParticipants {
		return
	}
	m.deadline = now.Add(m.cfg.WaitingGrace)
	m.graceToken = m.queue.Schedule(m.deadline, func(at time.Time) {
		m.graceToken = 0
		m.startSetup(at)
	})
	m.publishPhase()
}

func (m *Machine) cancelGrace() {
	if m.graceToken == 0 {
		return
	}
	m.queue.Cancel(m.graceToken)
	m.graceToken = 0
	if m.phase == engine.PhaseWaiting {
		m.deadline = time.Time{}
		m.publishPhase()
	}
}

// enter moves to next and books its deadline. d is ignored for Waiting,
// which has no deadline of its own.
func (m *Machine) enter(at time.Time, next engine.Phase, d time.Duration) bool {
	if !m.phase.CanTransitionTo(next) {
		m.log.Error("illegal phase transition",
			zap.String("from", string(m.phase)),
			zap.String("to", string(next)))
		return false
	}
	m.queue.Cancel(m.phaseToken)
	m.phaseToken = 0
	from := m.phase
	m.phase = next
	m.deadline = time.Time{}
	if next != engine.PhaseWaiting {
		m.deadline = at.Add(d)
		round := m.round
		m.phaseToken = m.queue.Schedule(m.deadline, func(at time.Time) {
			m.phaseToken = 0
			if m.phase != next || m.round != round {
				return
			}
			m.expire(at)
		})
	}
	m.publishPhase()
	m.log.Info("phase changed",
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.Int("round", m.round),
		zap.Time("deadline", m.deadline))
	return true
}

func (m *Machine) expire(at time.Time) {
	switch m.phase {
	case engine.PhaseSetup:
		m.startHiding(at)
	case engine.PhaseHiding:
		m.enter(at, engine.PhaseBriefing, m.cfg.BriefingDuration)
	case engine.PhaseBriefing:
		m.startSeeking(at)
	case engine.PhaseSeeking:
		m.resolve(at)
	case engine.PhaseRoundEnd:
		m.startSetup(at)
	}
}

func (m *Machine) startSetup(at time.Time) {
	m.cancelGrace()
	m.round++
	if !m.enter(at, engine.PhaseSetup, m.cfg.SetupDuration) {
		return
	}
	m.roundStart = at
	m.prepareRound(at)
}

// prepareRound resets round state and deals roles, spawns and capabilities.
// With too few participants the session goes back to Waiting.
func (m *Machine) prepareRound(at time.Time) bool {
	m.clearRound()
	if m.outcome != nil {
		m.outcome = nil
		m.out.Broadcast(replication.FieldOutcome, nil)
	}
	m.ledger.Reset()
	m.publishScore()

	ids := append([]string(nil), m.order...)
	if len(ids) < m.cfg.MinParticipants {
		m.log.Warn("not enough participants for a round",
			zap.Int("participants", len(ids)),
			zap.Int("min", m.cfg.MinParticipants))
		m.backToWaiting(at)
		return false
	}
	asg, err := m.roles.Assign(ids)
	if err != nil {
		m.log.Warn("role assignment failed", zap.Error(err))
		m.backToWaiting(at)
		return false
	}

	for _, id := range ids {
		p := m.participants[id]
		p.Role = asg.RoleOf(id)
		p.Alive = true
		p.Ammo, p.Traps = 0, 0
		if p.Role == engine.RoleHider {
			p.Ammo = m.cfg.Weapon.StartingAmmo
			p.Traps = m.cfg.Traps.PerRound
		}
		p.Pose = m.spawnPose(p.Role)
		m.publishParticipant(p)
		m.out.Send(id, replication.FieldSpawn, poseView(p.Pose))
		m.grant(at, p)
		if p.Role == engine.RoleHider {
			m.sendInventory(p)
		}
	}
	m.placePickups()
	m.log.Info("roles assigned",
		zap.Int("round", m.round),
		zap.String("hider", asg.Hider),
		zap.Int("seekers", len(asg.Seekers)))
	return true
}

// backToWaiting abandons a Setup that could not deal roles. The round it
// opened never ran, so its number is handed back.
func (m *Machine) backToWaiting(at time.Time) {
	if m.phase == engine.PhaseSetup {
		m.round--
	}
	if m.phase != engine.PhaseWaiting && !m.enter(at, engine.PhaseWaiting, 0) {
		return
	}
	for _, id := range m.order {
		p := m.participants[id]
		if p.Role == engine.RoleNone && !p.Alive {
			continue
		}
		p.Role = engine.RoleNone
		p.Alive = false
		m.publishParticipant(p)
	}
	m.maybeStartGrace(at)
}

func (m *Machine) placePickups() {
	for _, pose := range m.cfg.Weapon.Pickups {
		id := m.newID()
		m.pickups[id] = pose.Position
		m.out.Broadcast(replication.AmmoPickupField(id), types.AmmoPickupView{
			ID:       id,
			Position: vecView(pose.Position),
			Amount:   m.cfg.Weapon.PickupAmount,
		})
	}
}

func (m *Machine) spawnPose(role engine.Role) engine.Pose {
	if m.spawns != nil {
		if pose, ok := m.spawns.GetSpawnPose(role); ok {
			return pose
		}
	}
	m.log.Warn("no spawn pose for role, using fallback",
		zap.String("role", string(role)),
		zap.String("code", string(engine.CodeMissingCollaborator)))
	return m.cfg.SpawnFallback.Engine()
}

func (m *Machine) grant(at time.Time, p *engine.Participant) {
	mask, ok := engine.LookupMask(p.Mask)
	if !ok {
		mask, _ = engine.LookupMask(engine.DefaultMask)
	}
	spec := m.cfg.Spec(capability.KindInvisibility)
	if mask.Invisibility > 0 {
		spec.Duration = mask.Invisibility
	}
	m.addCapability(at, p.ID, capability.KindInvisibility, spec)
	if mask.Unique != "" {
		m.addCapability(at, p.ID, mask.Unique, m.cfg.Spec(mask.Unique))
	}
	if p.Role == engine.RoleHider {
		m.addCapability(at, p.ID, capability.KindWeapon, m.cfg.Spec(capability.KindWeapon))
	}
}

func (m *Machine) addCapability(at time.Time, owner string, kind capability.Kind, spec capability.Spec) *capability.Instance {
	inst := m.caps.Add(m.newID(), kind, owner, spec)
	m.publishCapability(at, inst)
	return inst
}

func (m *Machine) startHiding(at time.Time) {
	if !m.enter(at, engine.PhaseHiding, m.cfg.HidingDuration) {
		return
	}
	hider := m.hider()
	if hider == nil {
		m.forfeit(at, engine.RoleSeeker, wincond.ReasonHiderLeft)
		return
	}
	name := m.cfg.ObjectiveName
	if name == "" {
		m.log.Warn("no objective template configured",
			zap.String("code", string(engine.CodeMissingCollaborator)))
		name = "objective"
	}
	m.objective = &engine.Objective{
		ID:        m.newID(),
		Name:      name,
		Position:  engine.InFront(hider.Pose, m.cfg.ObjectiveOffset),
		OwnerHint: hider.ID,
	}
	m.publishObjective()
}

func (m *Machine) startSeeking(at time.Time) {
	if !m.enter(at, engine.PhaseSeeking, m.cfg.SeekingDuration) {
		return
	}
	m.race = wincond.NewRace(m.deadline)
	m.scheduleSurvive(at.Add(m.cfg.SurviveInterval))
	m.checkSeekers(at)
}

func (m *Machine) scheduleSurvive(at time.Time) {
	m.tickToken = m.queue.Schedule(at, func(at time.Time) {
		m.tickToken = 0
		if m.phase != engine.PhaseSeeking || !at.Before(m.deadline) {
			return
		}
		m.award(engine.ScoreSurvive)
		m.scheduleSurvive(at.Add(m.cfg.SurviveInterval))
	})
}

func (m *Machine) resolve(at time.Time) {
	if m.race == nil {
		return
	}
	if o, ok := m.race.Decide(at); ok {
		m.finish(at, o)
	}
}

func (m *Machine) forfeit(at time.Time, winner engine.Role, reason wincond.Reason) {
	if m.race != nil {
		m.race.Forfeit(winner, reason, at)
		m.resolve(at)
		return
	}
	m.finish(at, wincond.Outcome{Winner: winner, Reason: reason, At: at})
}

func (m *Machine) checkSeekers(at time.Time) {
	if m.phase != engine.PhaseSeeking {
		return
	}
	for _, p := range m.participants {
		if p.Living(engine.RoleSeeker) {
			return
		}
	}
	m.forfeit(at, engine.RoleHider, wincond.ReasonSeekersEliminated)
}

func (m *Machine) finish(at time.Time, o wincond.Outcome) {
	if !m.enter(at, engine.PhaseRoundEnd, m.cfg.RoundEndDuration) {
		return
	}
	m.outcome = &o
	m.out.Broadcast(replication.FieldOutcome, types.OutcomeView{
		Round:  m.round,
		Winner: string(o.Winner),
		Reason: string(o.Reason),
	})
	for _, id := range m.order {
		p := m.participants[id]
		if p.Role == engine.RoleNone {
			continue
		}
		m.out.Send(id, replication.FieldResult, types.ResultView{Round: m.round, DidWin: p.Role == o.Winner})
	}
	summary := m.summary(at, o)
	m.clearRound()
	m.log.Info("round finished",
		zap.Int("round", m.round),
		zap.String("winner", string(o.Winner)),
		zap.String("reason", string(o.Reason)),
		zap.Int("hider_score", summary.HiderScore),
		zap.Int("seeker_score", summary.SeekerScore))
	if m.onRound != nil {
		m.onRound(summary)
	}
}

// clearRound drops everything scoped to one round. Participants stay.
func (m *Machine) clearRound() {
	m.queue.Cancel(m.tickToken)
	m.tickToken = 0
	m.race = nil
	m.caps.Reset()
	for _, id := range slices.Sorted(maps.Keys(m.pickups)) {
		delete(m.pickups, id)
		m.out.Broadcast(replication.AmmoPickupField(id), nil)
	}
	if m.objective != nil {
		m.objective = nil
		m.out.Broadcast(replication.FieldObjective, nil)
	}
}

func (m *Machine) summary(at time.Time, o wincond.Outcome) engine.RoundSummary {
	s := engine.RoundSummary{
		Round:        m.round,
		Winner:       o.Winner,
		Reason:       string(o.Reason),
		HiderScore:   m.ledger.Hider,
		SeekerScore:  m.ledger.Seekers,
		Participants: len(m.participants),
		StartedAt:    m.roundStart,
		EndedAt:      at,
	}
	if h := m.hider(); h != nil {
		s.HiderID = h.ID
	}
	return s
}

func (m *Machine) award(ev engine.ScoreEvent) {
	team, pts := m.ledger.Apply(ev, m.points)
	if pts == 0 {
		return
	}
	m.log.Debug("score",
		zap.String("event", string(ev)),
		zap.String("team", string(team)),
		zap.Int("points", pts))
	m.publishScore()
}

func (m *Machine) hider() *engine.Participant {
	for _, id := range m.order {
		if p := m.participants[id]; p.Role == engine.RoleHider {
			return p
		}
	}
	return nil
}

// View is a copy of the machine state for inspection.
type View struct {
	Phase        engine.Phase
	Deadline     time.Time
	Round        int
	Score        engine.ScoreLedger
	Participants []engine.Participant
	Objective    *engine.Objective
	Outcome      *wincond.Outcome
	Capabilities int
	Traps        int
	Pickups      int
}

func (m *Machine) View() View {
	v := View{
		Phase:        m.phase,
		Deadline:     m.deadline,
		Round:        m.round,
		Score:        m.ledger,
		Capabilities: m.caps.Len(),
		Traps:        len(m.traps),
		Pickups:      len(m.pickups),
	}
	for _, id := range m.order {
		v.Participants = append(v.Participants, *m.participants[id])
	}
	if m.objective != nil {
		obj := *m.objective
		v.Objective = &obj
	}
	if m.outcome != nil {
		o := *m.outcome
		v.Outcome = &o
	}
	return v
}

// Capabilities lists the instances owned by id.
func (m *Machine) Capabilities(id string) []*capability.Instance {
	return m.caps.OwnedBy(id)
}

func (m *Machine) sortedTrapIDs() []string {
	ids := make([]string, 0, len(m.traps))
	for id := range m.traps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
