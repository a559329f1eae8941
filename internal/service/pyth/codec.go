package pyth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"SonicTrader/internal/domain/models"
	drepo "SonicTrader/internal/domain/repository"
)

var ErrMalformedFrame = errors.New("malformed hermes frame")

// Codec decodes Hermes websocket frames and REST bodies.
type Codec struct{}

func NewCodec() Codec { return Codec{} }

// number accepts both a JSON number and a quoted integer; Hermes sends
// price and conf as strings.
type number int64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*n = number(v)
	return nil
}

type wirePrice struct {
	Price       *number `json:"price"`
	Conf        number  `json:"conf"`
	Expo        int32   `json:"expo"`
	PublishTime int64   `json:"publish_time"`
}

type wireFeed struct {
	ID    string     `json:"id"`
	Price *wirePrice `json:"price"`
}

type wireFrame struct {
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	Error     string     `json:"error"`
	PriceFeed *wireFeed  `json:"price_feed"`
	Parsed    []wireFeed `json:"parsed"`
}

// Decode returns the updates carried by one frame. Acks and other
// non-price frames yield no updates and no error.
func (Codec) Decode(frame []byte) ([]models.RawPriceUpdate, error) {
	var f wireFrame
	if err := json.Unmarshal(frame, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch {
	case f.Type == "response" && f.Status == "error":
		return nil, fmt.Errorf("hermes error response: %s", f.Error)
	case f.Type == "price_update":
		if f.PriceFeed == nil {
			return nil, fmt.Errorf("%w: price_update without price_feed", ErrMalformedFrame)
		}
		u, err := f.PriceFeed.raw()
		if err != nil {
			return nil, err
		}
		return []models.RawPriceUpdate{u}, nil
	case f.Parsed != nil:
		out := make([]models.RawPriceUpdate, 0, len(f.Parsed))
		for i := range f.Parsed {
			u, err := f.Parsed[i].raw()
			if err != nil {
				return nil, err
			}
			out = append(out, u)
		}
		return out, nil
	}
	return nil, nil
}

func (w *wireFeed) raw() (models.RawPriceUpdate, error) {
	if w.ID == "" {
		return models.RawPriceUpdate{}, fmt.Errorf("%w: missing feed id", ErrMalformedFrame)
	}
	if w.Price == nil || w.Price.Price == nil {
		return models.RawPriceUpdate{}, fmt.Errorf("%w: feed %s has no price", ErrMalformedFrame, w.ID)
	}
	return models.RawPriceUpdate{
		FeedID:       w.ID,
		Mantissa:     int64(*w.Price.Price),
		ConfMantissa: int64(w.Price.Conf),
		Expo:         w.Price.Expo,
		PublishTime:  w.Price.PublishTime,
	}, nil
}

var _ drepo.FrameDecoder = Codec{}
