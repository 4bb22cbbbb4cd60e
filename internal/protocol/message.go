// internal/protocol/message.go
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/unoserve/unoserve/internal/models"
)

// MessageType is the wire discriminator carried in every frame's "type" field.
type MessageType string

const (
	TypeLoginRequest          MessageType = "LOGIN_REQUEST"
	TypeRegisterRequest       MessageType = "REGISTER_REQUEST"
	TypeWhoamiRequest         MessageType = "WHOAMI_REQUEST"
	TypeLogoutRequest         MessageType = "LOGOUT_REQUEST"
	TypeRoomCreationRequest   MessageType = "ROOM_CREATION_REQUEST"
	TypeRoomConnectionRequest MessageType = "ROOM_CONNECTION_REQUEST"
	TypeCardDropRequest       MessageType = "CARD_DROP_REQUEST"
	TypeDrawCardRequest       MessageType = "DRAW_CARD_REQUEST"
	TypeOK                    MessageType = "OK"
	TypeError                 MessageType = "ERROR"
	TypeRoomJoinUpdate        MessageType = "ROOM_JOIN_UPDATE"
	TypeGameStartUpdate       MessageType = "GAME_START_UPDATE"
	TypeGameUpdate            MessageType = "GAME_UPDATE"
	TypeGameEndUpdate         MessageType = "GAME_END_UPDATE"
	TypeRoomCloseUpdate       MessageType = "ROOM_CLOSE_UPDATE"
)

// Message is implemented by every frame payload. Kind returns the
// discriminator that Marshal injects and Unmarshal dispatches on.
type Message interface {
	Kind() MessageType
}

// LoginRequest authenticates a username/password pair and binds a session
// to the requesting connection.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (LoginRequest) Kind() MessageType { return TypeLoginRequest }

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (RegisterRequest) Kind() MessageType { return TypeRegisterRequest }

// WhoamiRequest asks for the logged-in user's account record.
type WhoamiRequest struct{}

func (WhoamiRequest) Kind() MessageType { return TypeWhoamiRequest }

// LogoutRequest removes the connection's session. The connection stays open.
type LogoutRequest struct{}

func (LogoutRequest) Kind() MessageType { return TypeLogoutRequest }

// RoomCreationRequest opens a room with a fixed player capacity.
type RoomCreationRequest struct {
	PlayerCount int `json:"player_count"`
}

func (RoomCreationRequest) Kind() MessageType { return TypeRoomCreationRequest }

// RoomConnectionRequest joins an existing room by ID.
type RoomConnectionRequest struct {
	RoomID int64 `json:"room_id"`
}

func (RoomConnectionRequest) Kind() MessageType { return TypeRoomConnectionRequest }

// CardDropRequest plays the card at CardIndex from the requester's hand.
// Color is required when the card is wild.
type CardDropRequest struct {
	CardIndex int          `json:"card_index"`
	Color     models.Color `json:"color,omitempty"`
}

func (CardDropRequest) Kind() MessageType { return TypeCardDropRequest }

// DrawCardRequest draws one card on the requester's turn.
type DrawCardRequest struct{}

func (DrawCardRequest) Kind() MessageType { return TypeDrawCardRequest }

// OK is the success reply. The optional fields depend on the request that
// produced it: room creation fills RoomID, login fills Token, whoami fills
// Username/Wins/Losses.
type OK struct {
	Username string `json:"username,omitempty"`
	Wins     *int   `json:"wins,omitempty"`
	Losses   *int   `json:"losses,omitempty"`
	RoomID   *int64 `json:"room_id,omitempty"`
	Token    string `json:"token,omitempty"`
}

func (OK) Kind() MessageType { return TypeOK }

// Error is the failure reply. Message is a human-readable reason; clients
// must not branch on its contents.
type Error struct {
	Message string `json:"message,omitempty"`
}

func (Error) Kind() MessageType { return TypeError }

// RoomJoinUpdate is broadcast to every room member when someone joins.
type RoomJoinUpdate struct {
	Username           string `json:"username"`
	MaxPlayerCount     int    `json:"max_player_count"`
	CurrentPlayerCount int    `json:"current_player_count"`
}

func (RoomJoinUpdate) Kind() MessageType { return TypeRoomJoinUpdate }

// GameStartUpdate is sent to each member when the room fills and the game
// is dealt. Hand and ID are specific to the receiving member.
type GameStartUpdate struct {
	Hand        []models.Card `json:"hand"`
	Turn        int           `json:"turn"`
	ID          int           `json:"id"`
	CurrentCard models.Card   `json:"current_card"`
}

func (GameStartUpdate) Kind() MessageType { return TypeGameStartUpdate }

// GameUpdate is sent to each member after a validated play or draw.
type GameUpdate struct {
	Hand        []models.Card `json:"hand"`
	Turn        int           `json:"turn"`
	CurrentCard models.Card   `json:"current_card"`
}

func (GameUpdate) Kind() MessageType { return TypeGameUpdate }

// GameEndUpdate is broadcast once when a hand empties; Winner is the seat.
type GameEndUpdate struct {
	Winner int `json:"winner"`
}

func (GameEndUpdate) Kind() MessageType { return TypeGameEndUpdate }

// RoomCloseUpdate is broadcast to remaining members when the owner leaves.
type RoomCloseUpdate struct{}

func (RoomCloseUpdate) Kind() MessageType { return TypeRoomCloseUpdate }

// Marshal serializes a message payload with its "type" discriminator spliced in.
func Marshal(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msg.Kind(), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("flatten %s payload: %w", msg.Kind(), err)
	}
	kind, _ := json.Marshal(msg.Kind())
	fields["type"] = kind
	return json.Marshal(fields)
}

// Unmarshal decodes a frame payload into its concrete message by
// discriminator. Unknown or missing discriminators are a ProtocolError;
// so is malformed JSON.
func Unmarshal(data []byte) (Message, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &ProtocolError{Reason: "payload is not valid JSON", Err: err}
	}

	var msg Message
	switch head.Type {
	case TypeLoginRequest:
		msg = &LoginRequest{}
	case TypeRegisterRequest:
		msg = &RegisterRequest{}
	case TypeWhoamiRequest:
		msg = &WhoamiRequest{}
	case TypeLogoutRequest:
		msg = &LogoutRequest{}
	case TypeRoomCreationRequest:
		msg = &RoomCreationRequest{}
	case TypeRoomConnectionRequest:
		msg = &RoomConnectionRequest{}
	case TypeCardDropRequest:
		msg = &CardDropRequest{}
	case TypeDrawCardRequest:
		msg = &DrawCardRequest{}
	case TypeOK:
		msg = &OK{}
	case TypeError:
		msg = &Error{}
	case TypeRoomJoinUpdate:
		msg = &RoomJoinUpdate{}
	case TypeGameStartUpdate:
		msg = &GameStartUpdate{}
	case TypeGameUpdate:
		msg = &GameUpdate{}
	case TypeGameEndUpdate:
		msg = &GameEndUpdate{}
	case TypeRoomCloseUpdate:
		msg = &RoomCloseUpdate{}
	case "":
		return nil, &ProtocolError{Reason: "missing type discriminator"}
	default:
		return nil, &ProtocolError{Reason: fmt.Sprintf("unknown message type %q", head.Type)}
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, &ProtocolError{Reason: fmt.Sprintf("invalid %s payload", head.Type), Err: err}
	}
	return msg, nil
}
