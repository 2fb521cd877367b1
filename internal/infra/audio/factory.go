package audio

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/trackdeck/internal/app/media"
	"github.com/osa030/trackdeck/internal/infra/config"
)

// ErrOutputUnavailable is returned when no audio device can be opened.
var ErrOutputUnavailable = errors.New("audio output unavailable")

// OtoSettings configures an OtoResource.
type OtoSettings struct {
	SampleRate         int `mapstructure:"sample_rate" default:"44100" validate:"oneof=22050 44100 48000"`
	Channels           int `mapstructure:"channels" default:"2" validate:"oneof=1 2"`
	BufferMs           int `mapstructure:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	ProgressIntervalMs int `mapstructure:"progress_interval_ms" default:"250" validate:"gte=10,lte=5000"`
}

// NewResourceFromConfig creates the configured media resource.
func NewResourceFromConfig(cfg config.MediaConfig) (media.Resource, error) {
	zlog.Debug().Msgf("audio: creating backend: type=%s settings=%+v", cfg.Backend, cfg.Settings)

	switch cfg.Backend {
	case "virtual":
		var settings VirtualSettings
		if err := DecodeSettings(cfg.Settings, &settings); err != nil {
			return nil, errors.Wrap(err, "virtual backend")
		}
		return NewVirtualResource(settings), nil

	case "oto":
		var settings OtoSettings
		if err := DecodeSettings(cfg.Settings, &settings); err != nil {
			return nil, errors.Wrap(err, "oto backend")
		}
		return NewOtoResource(settings)

	default:
		return nil, errors.Newf("unsupported media backend: %s", cfg.Backend)
	}
}

// DecodeSettings decodes a backend settings map into out, applies defaults
// and validates the result.
func DecodeSettings(settings map[string]any, out any) error {
	// Decode map[string]any to struct using mapstructure
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
