package types

// Client -> Server (JSON, "type" discriminator)
// CreateRoom:
//   name: string (1-20 chars; the creator becomes host)
//
// JoinRoom:
//   name: string
//   room_code: string
//   // joining a started room with the name of a disconnected player
//   // reconnects that player instead of adding a new one
//
// StartGame (host only):
//   optional_roles: string[] // "Percival" | "Morgana" | "Mordred" | "Oberon"
//   challenge_mode: boolean
//
// AddPlayerToQuest (leader only):
//   target: string
//
// RemovePlayerFromQuest (leader only):
//   target: string
//
// ConfirmTeam (leader only): {}
//
// TeamVote:
//   decision: "approve" | "reject"
//
// QuestVote (quest members only):
//   decision: "success" | "fail"
//
// Assassinate (Assassin only):
//   target: string

// Server -> Client
// RoomJoined:   room_code (unicast ack after attach)
// Error:        error, code: "validation" | "forbidden" | "internal" (unicast,
//               never closes the connection)
// RosterUpdate: roster: PlayerView[] (broadcast, projected per viewer)
// HostCanStart: message (unicast to host at 5+ players)
// RoleCatalog:  catalog: {good: Role[], evil: Role[]} (broadcast, no names)
// RoleReveal:   reveal: {role, alignment, sees, sees_as} (unicast per player)
// QuestState:   quest: {number, phase, leader, team_size, fails_required,
//               team, players_needed, vote_track, successes, fails, history}
// TeamConfirmable: message (unicast to leader when the team is full)
// AssassinPrompt:  message (unicast to the Assassin)
// VoteProgress: progress: {kind: "team"|"quest", voted, needed}
// VoteReveal:   ballots: {quest, accepts, rejects, accepted, vote_track}
// QuestOutcome: outcome: {number, result, fails, history} (fails is -1 when
//               challenge mode hides it)
// GameOver:     game_over: {winner, reason, assassin, target, merlin, roles}
//
// Every server message carries the room's monotonically increasing version.
