package token

import (
	"fmt"

	"github.com/ebfe/scard"
)

// pcscCard wraps a PC/SC card connection, implementing Card (grounded on
// the nfctools pkg/ntag424 Connection/Transmit pattern).
type pcscCard struct {
	ctx  *scard.Context
	card *scard.Card
}

// ConnectPCSC opens the given reader index and returns a Card backed by a
// real PC/SC connection.
func ConnectPCSC(readerIndex int) (Card, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("token: establish PC/SC context: %w", err)
	}
	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		_ = ctx.Release()
		return nil, fmt.Errorf("token: no PC/SC readers found: %w", err)
	}
	if readerIndex < 0 || readerIndex >= len(readers) {
		_ = ctx.Release()
		return nil, fmt.Errorf("token: reader index out of range (0..%d)", len(readers)-1)
	}
	card, err := ctx.Connect(readers[readerIndex], scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		_ = ctx.Release()
		return nil, fmt.Errorf("token: connect to reader: %w", err)
	}
	return &pcscCard{ctx: ctx, card: card}, nil
}

func (c *pcscCard) Transmit(apdu []byte) ([]byte, error) {
	return c.card.Transmit(apdu)
}

// Close releases the underlying PC/SC connection and context.
func (c *pcscCard) Close() {
	if c == nil {
		return
	}
	if c.card != nil {
		_ = c.card.Disconnect(scard.LeaveCard)
	}
	if c.ctx != nil {
		_ = c.ctx.Release()
	}
}

// apduHMACDevice frames the HMAC challenge-response as a vendor-proprietary
// APDU: CLA=0x80 INS=0x50 (compute HMAC) with the challenge as the command
// data field, Le=0 to request the full response.
type apduHMACDevice struct {
	card Card
}

// NewAPDUHMACDevice returns an HMACDevice that frames challenges as APDUs
// over card.
func NewAPDUHMACDevice(card Card) HMACDevice {
	return &apduHMACDevice{card: card}
}

func (d *apduHMACDevice) Respond(challenge []byte) ([]byte, error) {
	apdu := make([]byte, 0, 5+len(challenge))
	apdu = append(apdu, 0x80, 0x50, 0x00, 0x00, byte(len(challenge)))
	apdu = append(apdu, challenge...)

	resp, err := d.card.Transmit(apdu)
	if err != nil {
		return nil, err
	}
	if len(resp) < 2 {
		return nil, fmt.Errorf("token: short APDU response: %d bytes", len(resp))
	}
	sw1, sw2 := resp[len(resp)-2], resp[len(resp)-1]
	if sw1 != 0x90 || sw2 != 0x00 {
		return nil, fmt.Errorf("token: device returned status %02X%02X", sw1, sw2)
	}
	data := resp[:len(resp)-2]
	if len(data) != ResponseLength {
		return nil, fmt.Errorf("token: unexpected response length %d", len(data))
	}
	return data, nil
}
