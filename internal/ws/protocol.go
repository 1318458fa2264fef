package ws

// Client message types
const (
	MsgLobbyJoin       = "lobby:join"
	MsgLobbyLeave      = "lobby:leave"
	MsgLobbyListGames  = "lobby:listGames"
	MsgLobbyCreateGame = "lobby:createGame"
	MsgLobbyJoinGame   = "lobby:joinGame"
	MsgLobbyCancelGame = "lobby:cancelGame"

	MsgGameJoin            = "game:join"
	MsgGameLeave           = "game:leave"
	MsgGameMove            = "game:move"
	MsgGameResign          = "game:resign"
	MsgGameOfferDraw       = "game:offerDraw"
	MsgGameAcceptDraw      = "game:acceptDraw"
	MsgGameDeclineDraw     = "game:declineDraw"
	MsgGameCancelDrawOffer = "game:cancelDrawOffer"
	MsgGameTimeout         = "game:timeout"
)

// ClientMessage is the flat envelope clients send over the socket; which
// fields are meaningful depends on Type
type ClientMessage struct {
	Type string `json:"type"`

	// lobby:createGame
	TimeControl *int `json:"time_control,omitempty"`

	// lobby:joinGame, lobby:cancelGame, game:join
	GameID string `json:"game_id,omitempty"`

	// game:move
	From               string   `json:"from,omitempty"`
	To                 string   `json:"to,omitempty"`
	Promotion          string   `json:"promotion,omitempty"`
	SerializedPosition string   `json:"serialized_position,omitempty"`
	MoveLog            []string `json:"move_log,omitempty"`

	// game:timeout
	TimedOutColor string `json:"timed_out_color,omitempty"`
}
