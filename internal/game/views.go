package game

// RosterEntry is the public face of a participant: roles never leak
// through the roster.
type RosterEntry struct {
	Fingerprint string `json:"fingerprint"`
	Username    string `json:"username"`
	IsLeader    bool   `json:"isLeader"`
	Connected   bool   `json:"connected"`
}

// PlayerView is the personalized snapshot sent to one participant. Role is
// always the recipient's own; the secret word is present only for
// crewmates.
type PlayerView struct {
	PartyCode       string           `json:"partyCode"`
	Username        string           `json:"username"`
	Fingerprint     string           `json:"fingerprint"`
	IsLeader        bool             `json:"isLeader"`
	Players         []RosterEntry    `json:"players"`
	Settings        Settings         `json:"settings"`
	Phase           Phase            `json:"gameStatus"`
	Role            Role             `json:"role,omitempty"`
	Word            string           `json:"word,omitempty"`
	Round           int              `json:"currentRound"`
	Chats           []ChatEntry      `json:"chats"`
	CurrentTurn     string           `json:"currentTurn,omitempty"`
	TurnOrder       []string         `json:"turnOrder,omitempty"`
	FinalStatements []FinalStatement `json:"finalMessages"`
	CaughtImposters []string         `json:"caughtImposters"`
	Outcome         *Outcome         `json:"gameResult,omitempty"`
}

// PublicView is the lobby-safe snapshot served over plain HTTP.
type PublicView struct {
	PartyCode   string        `json:"partyCode"`
	Players     []RosterEntry `json:"players"`
	Settings    Settings      `json:"settings"`
	Phase       Phase         `json:"status"`
	Round       int           `json:"currentRound"`
	PlayerCount int           `json:"playerCount"`
}

// Roster lists participants in join order with roles stripped.
func (s *Session) Roster() []RosterEntry {
	out := make([]RosterEntry, 0, len(s.joinOrder))
	for _, id := range s.joinOrder {
		p := s.participants[id]
		out = append(out, RosterEntry{
			Fingerprint: p.ID,
			Username:    p.Name,
			IsLeader:    p.IsOwner,
			Connected:   p.Connected,
		})
	}
	return out
}

func (s *Session) PlayerView(id string) (PlayerView, bool) {
	p, ok := s.participants[id]
	if !ok {
		return PlayerView{}, false
	}
	v := PlayerView{
		PartyCode:       s.Code,
		Username:        p.Name,
		Fingerprint:     p.ID,
		IsLeader:        p.IsOwner,
		Players:         s.Roster(),
		Settings:        s.Settings,
		Phase:           s.Phase,
		Role:            p.Role,
		Round:           s.round,
		Chats:           s.transcript,
		CurrentTurn:     s.CurrentTurnID(),
		TurnOrder:       s.TurnOrder(),
		FinalStatements: s.finalStatements,
		CaughtImposters: s.CaughtImposters(),
		Outcome:         s.outcome,
	}
	if p.Role == RoleCrewmate {
		v.Word = s.secretWord
	}
	return v, true
}

func (s *Session) PublicView() PublicView {
	return PublicView{
		PartyCode:   s.Code,
		Players:     s.Roster(),
		Settings:    s.Settings,
		Phase:       s.Phase,
		Round:       s.round,
		PlayerCount: len(s.participants),
	}
}
