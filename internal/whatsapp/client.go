package whatsapp

import (
	"context"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/consultdesk/bookingagent/internal/logging"
	"github.com/consultdesk/bookingagent/internal/sse"
)

// ErrNotConnected is returned when sending before the session is up.
var ErrNotConnected = errors.New("whatsapp client is not connected")

// Client is the consultant's WhatsApp session. It feeds inbound direct
// messages to the handler and sends replies back.
type Client struct {
	WAClient  *whatsmeow.Client
	handler   *Handler
	container *sqlstore.Container
	state     *sse.State
	logger    *zap.Logger
}

// NewClient opens the whatsmeow device store at dbPath. state may be nil.
func NewClient(ctx context.Context, handler *Handler, dbPath string, state *sse.State, logger *zap.Logger) (*Client, error) {
	dbLog := waLog.Stdout("Database", "WARN", true)

	container, err := sqlstore.New(ctx, "sqlite3", "file:"+dbPath+"?_foreign_keys=on", dbLog)
	if err != nil {
		return nil, fmt.Errorf("failed to create whatsapp store: %w", err)
	}

	c := &Client{
		handler:   handler,
		container: container,
		state:     state,
		logger:    logging.OrNop(logger),
	}
	if err := c.initDevice(ctx, false); err != nil {
		return nil, err
	}
	return c, nil
}

// initDevice creates the whatsmeow client on the first device, deleting
// every stored device first when fresh is set.
func (c *Client) initDevice(ctx context.Context, fresh bool) error {
	if fresh {
		devices, err := c.container.GetAllDevices(ctx)
		if err != nil {
			c.logger.Warn("Could not list whatsapp devices", zap.Error(err))
		}
		for _, dev := range devices {
			if err := c.container.DeleteDevice(ctx, dev); err != nil {
				c.logger.Warn("Failed to delete whatsapp device", zap.Error(err))
			}
		}
	}

	deviceStore, err := c.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device store: %w", err)
	}

	c.WAClient = whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "WARN", true))
	if c.handler != nil {
		c.WAClient.AddEventHandler(c.handler.HandleEvent)
	}
	return nil
}

// IsLoggedIn reports whether a paired session is stored.
func (c *Client) IsLoggedIn() bool {
	return c.WAClient.Store.ID != nil
}

// Connect opens the session. Without a stored session it publishes pairing
// QR codes on the status state and blocks until pairing ends.
func (c *Client) Connect(ctx context.Context) error {
	if c.IsLoggedIn() {
		if err := c.WAClient.Connect(); err != nil {
			c.setError(err.Error())
			return fmt.Errorf("failed to connect: %w", err)
		}
		return nil
	}

	qrChan, err := c.WAClient.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := c.WAClient.Connect(); err != nil {
		c.setError(err.Error())
		return fmt.Errorf("failed to connect: %w", err)
	}

	for evt := range qrChan {
		switch evt.Event {
		case "code":
			if err := WriteQRFile(evt.Code, qrPNGPath); err != nil {
				c.logger.Warn("Failed to save QR code", zap.Error(err))
			} else {
				c.logger.Info("WhatsApp QR code saved", zap.String("path", qrPNGPath))
			}
			dataURL, err := GenerateQRDataURL(evt.Code)
			if err != nil {
				c.logger.Warn("Failed to render QR code", zap.Error(err))
				continue
			}
			if c.state != nil {
				c.state.SetQR(sse.IntegrationWhatsApp, dataURL)
			}
		case "success":
			c.logger.Info("WhatsApp paired")
			return nil
		case "timeout":
			c.setError("QR code expired")
			return fmt.Errorf("whatsapp pairing timed out")
		}
	}
	return nil
}

// PairWithPhone starts phone-number pairing on a fresh device and returns
// the code to type on the phone.
func (c *Client) PairWithPhone(ctx context.Context, phone string) (string, error) {
	c.WAClient.Disconnect()
	if err := c.initDevice(ctx, true); err != nil {
		return "", fmt.Errorf("failed to reinitialize device: %w", err)
	}

	qrChan, err := c.WAClient.GetQRChannel(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := c.WAClient.Connect(); err != nil {
		return "", fmt.Errorf("failed to connect: %w", err)
	}

	<-qrChan // pairing codes are only accepted after the first QR event
	code, err := c.WAClient.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
	if err != nil {
		return "", fmt.Errorf("failed to pair phone: %w", err)
	}
	if c.state != nil {
		c.state.Set(sse.IntegrationWhatsApp, sse.StatusWaiting)
	}

	go func() {
		for evt := range qrChan {
			switch evt.Event {
			case "success":
				c.logger.Info("WhatsApp paired with phone code")
				return
			case "timeout":
				c.setError("pairing timed out")
				return
			}
		}
	}()
	return code, nil
}

// SendText sends a plain text message to the chat JID.
func (c *Client) SendText(ctx context.Context, identifier, text string) error {
	if !c.WAClient.IsConnected() {
		return ErrNotConnected
	}
	jid, err := types.ParseJID(identifier)
	if err != nil {
		return fmt.Errorf("invalid whatsapp jid %q: %w", identifier, err)
	}
	if _, err := c.WAClient.SendMessage(ctx, jid, &waE2E.Message{Conversation: proto.String(text)}); err != nil {
		return fmt.Errorf("failed to send whatsapp message: %w", err)
	}
	return nil
}

// Disconnect closes the connection and keeps the stored session.
func (c *Client) Disconnect() {
	c.WAClient.Disconnect()
}

func (c *Client) setError(msg string) {
	if c.state != nil {
		c.state.SetError(sse.IntegrationWhatsApp, msg)
	}
}
