package grayv

import (
	"strings"

	"github.com/pkg/errors"
)

// AdapterPolicy names an adapter ranking. Names carry a version suffix so a
// changed ranking gets a new name instead of silently altering behavior.
type AdapterPolicy string

const (
	PolicyPreferDiscrete AdapterPolicy = "prefer-discrete/v1"
	PolicyDiscreteOnly   AdapterPolicy = "discrete-only/v1"
	PolicyAny            AdapterPolicy = "any/v1"
)

var policyRanks = map[AdapterPolicy]map[AdapterType]int{
	PolicyPreferDiscrete: {
		AdapterDiscrete:   2,
		AdapterIntegrated: 1,
	},
	PolicyDiscreteOnly: {
		AdapterDiscrete: 1,
	},
	PolicyAny: {
		AdapterDiscrete:   4,
		AdapterIntegrated: 3,
		AdapterVirtual:    2,
		AdapterCPU:        1,
	},
}

// ParsePolicy resolves a policy name. A bare name without version resolves
// to its v1 form.
func ParsePolicy(name string) (AdapterPolicy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return PolicyPreferDiscrete, nil
	}
	if !strings.Contains(name, "/") {
		name += "/v1"
	}
	p := AdapterPolicy(name)
	if _, ok := policyRanks[p]; !ok {
		return "", errors.Wrapf(ErrUnknownPolicy, "%q", name)
	}
	return p, nil
}

// Rank returns the preference of an adapter type; zero means excluded.
func (p AdapterPolicy) Rank(t AdapterType) int {
	if p == "" {
		p = PolicyPreferDiscrete
	}
	return policyRanks[p][t]
}

// candidate is an adapter together with everything learned while checking it.
type candidate struct {
	info     AdapterInfo
	queues   queueFamilies
	details  SurfaceDetails
	missing  []string
	reason   string
	suitable bool
}

// evaluateAdapter checks one adapter against the surface and the required
// device extensions.
func evaluateAdapter(drv Driver, info AdapterInfo, surface Surface, required []string) (*candidate, error) {
	c := &candidate{info: info}
	queues, err := findQueueFamilies(drv, info, surface)
	if err != nil {
		return nil, err
	}
	c.queues = queues
	if !queues.graphicsFound {
		c.reason = "no graphics queue family"
		return c, nil
	}
	if !queues.presentFound {
		c.reason = "no queue family can present to the surface"
		return c, nil
	}

	available, err := drv.AdapterExtensions(info.Handle)
	if err != nil {
		return nil, err
	}
	if _, c.missing = checkExisting(available, required); len(c.missing) > 0 {
		c.reason = "missing extensions: " + strings.Join(c.missing, ", ")
		return c, nil
	}

	details, err := drv.SurfaceDetails(info.Handle, surface)
	if err != nil {
		return nil, err
	}
	c.details = details
	switch {
	case len(details.Formats) == 0:
		c.reason = "no surface formats"
	case len(details.PresentModes) == 0:
		c.reason = "no present modes"
	default:
		c.suitable = true
	}
	return c, nil
}

// selectAdapter picks the best suitable candidate under policy. Ties keep
// the first enumerated adapter.
func selectAdapter(cands []*candidate, policy AdapterPolicy) *candidate {
	var best *candidate
	bestRank := 0
	for _, c := range cands {
		if !c.suitable {
			continue
		}
		if r := policy.Rank(c.info.Type); r > bestRank {
			best, bestRank = c, r
		}
	}
	return best
}

// AdapterReport is the outcome of evaluating one adapter.
type AdapterReport struct {
	Name              string
	Type              AdapterType
	APIVersion        uint32
	QueueFamilies     int
	GraphicsFamily    int
	PresentFamily     int
	MissingExtensions []string
	Formats           int
	PresentModes      int
	Suitable          bool
	Reason            string
	Selected          bool
}

func (c *candidate) report() AdapterReport {
	r := AdapterReport{
		Name:              c.info.Name,
		Type:              c.info.Type,
		APIVersion:        c.info.APIVersion,
		QueueFamilies:     len(c.info.QueueFamilies),
		GraphicsFamily:    -1,
		PresentFamily:     -1,
		MissingExtensions: c.missing,
		Formats:           len(c.details.Formats),
		PresentModes:      len(c.details.PresentModes),
		Suitable:          c.suitable,
		Reason:            c.reason,
	}
	if c.queues.graphicsFound {
		r.GraphicsFamily = int(c.queues.graphics)
	}
	if c.queues.presentFound {
		r.PresentFamily = int(c.queues.present)
	}
	return r
}
