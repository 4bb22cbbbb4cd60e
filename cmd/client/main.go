// cmd/client/main.go is the interactive terminal front end: it speaks the
// framed protocol to the server and renders hands with colors.
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/unoserve/unoserve/internal/models"
	"github.com/unoserve/unoserve/internal/protocol"
)

type client struct {
	conn     net.Conn
	incoming chan protocol.Message

	seat        int
	hand        []models.Card
	currentCard models.Card
	turn        int
	inGame      bool
}

func main() {
	host := "127.0.0.1"
	port := 12345
	if len(os.Args) == 2 {
		if p, err := strconv.Atoi(os.Args[1]); err == nil {
			port = p
		}
	}

	conn, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		pterm.Error.Printfln("cannot connect: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	c := &client{conn: conn, incoming: make(chan protocol.Message, 16), seat: -1}
	go c.readLoop()

	pterm.DefaultHeader.Println("Uno")

	for {
		command, _ := pterm.DefaultInteractiveTextInput.WithDefaultText(">").Show()
		switch strings.TrimSpace(command) {
		case "help":
			printHelp()
		case "register":
			c.auth(&protocol.RegisterRequest{}, "registered")
		case "login":
			c.auth(&protocol.LoginRequest{}, "logged in")
		case "whoami":
			c.whoami()
		case "logout":
			if _, err := c.request(&protocol.LogoutRequest{}); err != nil {
				pterm.Error.Printfln("failed to logout: %v", err)
			} else {
				pterm.Success.Println("logged out")
			}
		case "new room":
			c.newRoom()
		case "join room":
			c.joinRoom()
		case "exit":
			return
		default:
			pterm.Warning.Println("invalid command, try 'help'")
		}
	}
}

func printHelp() {
	pterm.Println("login     - login to the server")
	pterm.Println("register  - register a new account")
	pterm.Println("whoami    - show the current user")
	pterm.Println("logout    - logout from the server")
	pterm.Println("new room  - create a room and wait for players")
	pterm.Println("join room - join a room by id")
	pterm.Println("exit      - exit the program")
	pterm.Println("help      - show this message")
}

// readLoop decodes frames until the connection dies.
func (c *client) readLoop() {
	defer close(c.incoming)
	for {
		msg, err := protocol.Decode(c.conn)
		if err != nil {
			return
		}
		c.incoming <- msg
	}
}

// request sends one message and consumes incoming frames until the direct
// OK/ERROR reply arrives, applying any broadcasts seen along the way.
func (c *client) request(msg protocol.Message) (*protocol.OK, error) {
	if err := protocol.Encode(c.conn, msg); err != nil {
		return nil, err
	}
	for in := range c.incoming {
		switch m := in.(type) {
		case *protocol.OK:
			return m, nil
		case *protocol.Error:
			if m.Message != "" {
				return nil, fmt.Errorf("%s", m.Message)
			}
			return nil, fmt.Errorf("request rejected")
		default:
			c.applyUpdate(in)
		}
	}
	return nil, fmt.Errorf("connection closed")
}

func (c *client) auth(req protocol.Message, verb string) {
	username, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("username").Show()
	password, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("password").WithMask("*").Show()
	switch r := req.(type) {
	case *protocol.RegisterRequest:
		r.Username, r.Password = username, password
	case *protocol.LoginRequest:
		r.Username, r.Password = username, password
	}
	if _, err := c.request(req); err != nil {
		pterm.Error.Printfln("failed: %v", err)
		return
	}
	pterm.Success.Printfln("%s successfully", verb)
}

func (c *client) whoami() {
	ok, err := c.request(&protocol.WhoamiRequest{})
	if err != nil {
		pterm.Error.Printfln("failed to get user information: %v", err)
		return
	}
	wins, losses := 0, 0
	if ok.Wins != nil {
		wins = *ok.Wins
	}
	if ok.Losses != nil {
		losses = *ok.Losses
	}
	pterm.Info.Printfln("%s: %d wins, %d losses", ok.Username, wins, losses)
}

func (c *client) newRoom() {
	countStr, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("player count").Show()
	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil {
		pterm.Error.Println("invalid player count")
		return
	}
	ok, err := c.request(&protocol.RoomCreationRequest{PlayerCount: count})
	if err != nil {
		pterm.Error.Printfln("failed to create room: %v", err)
		return
	}
	if ok.RoomID != nil {
		pterm.Success.Printfln("room created with id %d", *ok.RoomID)
		pterm.Info.Printfln("1/%d joined", count)
	}
	c.gameLoop()
}

func (c *client) joinRoom() {
	idStr, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("room id").Show()
	id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
	if err != nil {
		pterm.Error.Println("invalid room id")
		return
	}
	if _, err := c.request(&protocol.RoomConnectionRequest{RoomID: id}); err != nil {
		pterm.Error.Printfln("cannot join room %d: %v", id, err)
		return
	}
	pterm.Success.Printfln("joined room %d", id)
	c.gameLoop()
}

// gameLoop consumes broadcasts until the game ends or the room closes,
// prompting for a move whenever it is this client's turn.
func (c *client) gameLoop() {
	for {
		if c.inGame && c.turn == c.seat {
			c.playTurn()
			if !c.inGame {
				return
			}
			continue
		}
		in, open := <-c.incoming
		if !open {
			pterm.Error.Println("connection lost")
			os.Exit(1)
		}
		if done := c.applyUpdate(in); done {
			return
		}
	}
}

// applyUpdate folds one broadcast into client state. Returns true when the
// room is finished.
func (c *client) applyUpdate(msg protocol.Message) bool {
	switch m := msg.(type) {
	case *protocol.RoomJoinUpdate:
		pterm.Info.Printfln("%s joined (%d/%d)", m.Username, m.CurrentPlayerCount, m.MaxPlayerCount)
	case *protocol.GameStartUpdate:
		c.inGame = true
		c.seat = m.ID
		c.hand = m.Hand
		c.turn = m.Turn
		c.currentCard = m.CurrentCard
		pterm.DefaultSection.Println("game started")
		c.render()
	case *protocol.GameUpdate:
		c.hand = m.Hand
		c.turn = m.Turn
		c.currentCard = m.CurrentCard
		c.render()
	case *protocol.GameEndUpdate:
		c.inGame = false
		if m.Winner == c.seat {
			pterm.Success.Println("you won!")
		} else {
			pterm.Info.Printfln("player %d won", m.Winner)
		}
		return true
	case *protocol.RoomCloseUpdate:
		c.inGame = false
		pterm.Warning.Println("room closed by the owner")
		return true
	}
	return false
}

// playTurn prompts for a move and sends it.
func (c *client) playTurn() {
	me := models.Player{ID: c.seat, Hand: c.hand}
	if !me.HasPlayable(c.currentCard) {
		pterm.Info.Println("no playable card in hand; 'draw' is your move")
	} else {
		pterm.Info.Println("your turn: 'play <n> [color]' or 'draw'")
	}
	input, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("move").Show()
	fields := strings.Fields(strings.TrimSpace(input))

	var req protocol.Message
	switch {
	case len(fields) >= 2 && fields[0] == "play":
		idx, err := strconv.Atoi(fields[1])
		if err != nil {
			pterm.Error.Println("invalid card number")
			return
		}
		drop := &protocol.CardDropRequest{CardIndex: idx}
		if len(fields) == 3 {
			drop.Color = models.Color(fields[2])
		}
		req = drop
	case len(fields) == 1 && fields[0] == "draw":
		req = &protocol.DrawCardRequest{}
	default:
		pterm.Warning.Println("say 'play <n> [color]' or 'draw'")
		return
	}

	if _, err := c.request(req); err != nil {
		pterm.Error.Printfln("move rejected: %v", err)
	}
}

// render prints the shared card, whose turn it is, and the hand in color.
func (c *client) render() {
	pterm.Printfln("current card: %s", renderCard(c.currentCard))
	if c.turn == c.seat {
		pterm.Printfln("turn: %s", pterm.LightGreen("you"))
	} else {
		pterm.Printfln("turn: player %d", c.turn)
	}
	for i, card := range c.hand {
		pterm.Printfln("  [%d] %s", i, renderCard(card))
	}
}

func renderCard(card models.Card) string {
	label := string(card.Kind)
	if card.ChosenColor != "" {
		label += " (" + string(card.ChosenColor) + ")"
	}
	switch card.EffectiveColor() {
	case models.ColorRed:
		return pterm.Red(label)
	case models.ColorGreen:
		return pterm.Green(label)
	case models.ColorBlue:
		return pterm.Blue(label)
	case models.ColorYellow:
		return pterm.Yellow(label)
	default:
		return pterm.Gray(label)
	}
}
