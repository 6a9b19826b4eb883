package deploy

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/assetkeeper/internal/asset"
	"github.com/JonMunkholm/assetkeeper/internal/restore"
)

// MaxBatchItems caps the number of items one manifest may carry.
const MaxBatchItems = 500

// ErrInvalidManifest wraps every manifest decode or validation failure.
var ErrInvalidManifest = errors.New("invalid manifest")

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid request")

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their wire names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"yaml", "json"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})

	_ = validate.RegisterValidation("assetkind", validateAssetKind)
}

func validateAssetKind(fl validator.FieldLevel) bool {
	_, err := asset.ParseKind(fl.Field().String())
	return err == nil
}

// Manifest lists the assets a batch restores. Defaults apply to every item;
// item fields override them.
//
//	concurrent: true
//	maxParallel: 4
//	defaults:
//	  overwrite: true
//	  backupExisting: true
//	items:
//	  - kind: dataset
//	    id: ds-orders
//	  - kind: dashboard
//	    id: sales
//	    targetId: sales-restored
type Manifest struct {
	Defaults    restore.DeployConfig `yaml:"defaults" json:"defaults"`
	Concurrent  bool                 `yaml:"concurrent" json:"concurrent"`
	MaxParallel int                  `yaml:"maxParallel" json:"maxParallel" validate:"gte=0,lte=32"`
	StopOnError bool                 `yaml:"stopOnError" json:"stopOnError" validate:"excluded_if=Concurrent true"`
	Items       []ManifestItem       `yaml:"items" json:"items" validate:"required,min=1,max=500,dive"`
}

// ManifestItem is one asset in a batch. Nil overrides keep the default.
type ManifestItem struct {
	Kind           string `yaml:"kind" json:"kind" validate:"required,assetkind"`
	ID             string `yaml:"id" json:"id" validate:"required,max=512"`
	TargetID       string `yaml:"targetId,omitempty" json:"targetId,omitempty" validate:"omitempty,max=512"`
	NameOverride   string `yaml:"nameOverride,omitempty" json:"nameOverride,omitempty"`
	Overwrite      *bool  `yaml:"overwrite,omitempty" json:"overwrite,omitempty"`
	SkipIfExists   *bool  `yaml:"skipIfExists,omitempty" json:"skipIfExists,omitempty"`
	BackupExisting *bool  `yaml:"backupExisting,omitempty" json:"backupExisting,omitempty"`
	DryRun         *bool  `yaml:"dryRun,omitempty" json:"dryRun,omitempty"`
}

// NewManifest returns an empty manifest whose defaults are
// restore.DefaultConfig.
func NewManifest() Manifest {
	return Manifest{Defaults: restore.DefaultConfig()}
}

// LoadManifest decodes a YAML (or JSON) manifest and validates it. Unknown
// fields are rejected.
func LoadManifest(r io.Reader) (Manifest, error) {
	m := NewManifest()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return Manifest{}, fmt.Errorf("%w: empty document", ErrInvalidManifest)
		}
		return Manifest{}, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks field constraints on the manifest and every item.
func (m Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidManifest, describeValidation(err))
	}
	return nil
}

// Request resolves the item against the manifest defaults.
func (it ManifestItem) Request(defaults restore.DeployConfig) Request {
	cfg := defaults
	if it.TargetID != "" {
		cfg.TargetID = it.TargetID
	}
	if it.NameOverride != "" {
		cfg.NameOverride = it.NameOverride
	}
	if it.Overwrite != nil {
		cfg.Overwrite = *it.Overwrite
	}
	if it.SkipIfExists != nil {
		cfg.SkipIfExists = *it.SkipIfExists
	}
	if it.BackupExisting != nil {
		cfg.BackupExisting = *it.BackupExisting
	}
	if it.DryRun != nil {
		cfg.DryRun = *it.DryRun
	}

	kind, _ := asset.ParseKind(it.Kind)
	return Request{Kind: kind, ID: it.ID, Config: cfg}
}

// describeValidation flattens validator errors into one line per field.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		msg := fmt.Sprintf("%s: failed %s", field, fe.Tag())
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}
