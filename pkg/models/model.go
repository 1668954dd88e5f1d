// Package models provides the fitted pieces a stage is made of: the feature
// scaler and the regression model that maps a scaled feature vector to a
// normalized grade.
//
// Three regressor kinds are available:
//   - LinearRegressor: ridge least squares (intercept + coefficients)
//   - GradientBoostingRegressor: least-squares boosted regression trees
//   - RemoteRegressor: delegates scoring to an external HTTP service
//
// All regressors are immutable after construction and safe for concurrent use.
package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Regressor maps a scaled feature vector to a scalar prediction.
type Regressor interface {
	// Name returns a short identifier for the regressor kind.
	Name() string

	// Predict returns the model output for one feature vector.
	Predict(ctx context.Context, x []float64) (float64, error)

	// Features returns the vector length the model expects, or -1 when the
	// model cannot tell (remote scoring).
	Features() int
}

// Kind identifies a serialized regressor.
type Kind string

const (
	KindLinear Kind = "linear"
	KindGBR    Kind = "gbr"
	KindRemote Kind = "remote"
)

// ErrDimension is returned when a vector does not have the expected length.
var ErrDimension = errors.New("feature dimension mismatch")

// Spec is the serialized form of a regressor as stored in an artifact bundle.
// Exactly one of the kind-specific fields is set.
type Spec struct {
	Kind   Kind                       `json:"kind"`
	Linear *LinearRegressor           `json:"linear,omitempty"`
	GBR    *GradientBoostingRegressor `json:"gbr,omitempty"`
	Remote *RemoteSpec                `json:"remote,omitempty"`
}

// RemoteSpec configures a RemoteRegressor.
type RemoteSpec struct {
	Endpoint  string `json:"endpoint"`
	ValuePath string `json:"valuePath,omitempty"`
	Timeout   string `json:"timeout,omitempty"`
}

// BuildOptions carries runtime dependencies that are not part of the bundle.
type BuildOptions struct {
	// HTTPClient is used by remote regressors. Nil means a default client.
	HTTPClient *http.Client
}

// Build turns a spec into a ready regressor. stage is passed to remote
// scoring services so one endpoint can serve several stages.
func (s Spec) Build(stage string, opts BuildOptions) (Regressor, error) {
	switch s.Kind {
	case KindLinear:
		if s.Linear == nil {
			return nil, errors.New("linear model spec is empty")
		}
		if err := s.Linear.validate(); err != nil {
			return nil, err
		}
		return s.Linear, nil

	case KindGBR:
		if s.GBR == nil {
			return nil, errors.New("gbr model spec is empty")
		}
		if err := s.GBR.validate(); err != nil {
			return nil, err
		}
		return s.GBR, nil

	case KindRemote:
		if s.Remote == nil || s.Remote.Endpoint == "" {
			return nil, errors.New("remote model spec requires an endpoint")
		}
		client := opts.HTTPClient
		if client == nil && s.Remote.Timeout != "" {
			d, err := time.ParseDuration(s.Remote.Timeout)
			if err != nil {
				return nil, fmt.Errorf("remote timeout: %w", err)
			}
			client = &http.Client{Timeout: d}
		}
		return NewRemoteRegressor(s.Remote.Endpoint, stage, s.Remote.ValuePath, client), nil

	default:
		return nil, fmt.Errorf("unknown model kind %q (must be linear, gbr, or remote)", s.Kind)
	}
}

// SpecOf serializes a fitted regressor.
func SpecOf(r Regressor) (Spec, error) {
	switch m := r.(type) {
	case *LinearRegressor:
		return Spec{Kind: KindLinear, Linear: m}, nil
	case *GradientBoostingRegressor:
		return Spec{Kind: KindGBR, GBR: m}, nil
	case *RemoteRegressor:
		return Spec{Kind: KindRemote, Remote: &RemoteSpec{Endpoint: m.endpoint, ValuePath: m.valuePath}}, nil
	default:
		return Spec{}, fmt.Errorf("cannot serialize regressor %T", r)
	}
}
