package grayv

import (
	"strings"

	"github.com/andewx/grayv/log"
	"github.com/pkg/errors"
)

// Session owns the instance, surface, selected adapter, logical device and
// its queues. Every other GPU object in the renderer depends on it.
type Session struct {
	drv      Driver
	app      AppInfo
	provider SurfaceProvider
	logger   log.Logger

	instance Instance
	surface  Surface
	adapter  AdapterInfo
	device   Device
	queues   queueFamilies

	graphicsQueue Queue
	presentQueue  Queue

	dependents int
	destroyed  bool
}

// NewSession creates the instance and surface, selects an adapter under
// app.Policy and creates the logical device. Nothing is kept on failure.
func NewSession(drv Driver, provider SurfaceProvider, app AppInfo) (s *Session, err error) {
	// Runs after checkErr has turned a driver panic into err.
	defer func() {
		if err != nil && s != nil {
			s.release()
			s = nil
		}
	}()
	defer checkErr(&err)

	s = &Session{
		drv:      drv,
		app:      app,
		provider: provider,
		logger:   log.New("session"),
	}
	if s.app.Policy == "" {
		s.app.Policy = PolicyPreferDiscrete
	}
	if _, ok := policyRanks[s.app.Policy]; !ok {
		return nil, errors.Wrapf(ErrUnknownPolicy, "%q", s.app.Policy)
	}

	if err := s.createInstance(); err != nil {
		return nil, err
	}

	s.surface, err = drv.CreateSurface(s.instance, provider)
	if err != nil {
		s.release()
		return nil, errors.Wrap(err, "create surface")
	}

	best, cands, err := s.pickAdapter()
	if err != nil {
		s.release()
		return nil, err
	}
	if best == nil {
		s.release()
		var reasons []string
		for _, c := range cands {
			reasons = append(reasons, c.info.Name+": "+c.reason)
		}
		if len(reasons) == 0 {
			return nil, errors.Wrapf(ErrNoSuitableAdapter, "policy %s: no adapters", s.app.Policy)
		}
		return nil, errors.Wrapf(ErrNoSuitableAdapter, "policy %s: %s", s.app.Policy, strings.Join(reasons, "; "))
	}
	s.adapter = best.info
	s.queues = best.queues
	s.logger.Noticef("selected adapter %q (%s)", best.info.Name, best.info.Type)

	s.device, err = drv.CreateDevice(best.info.Handle, DeviceInfo{
		QueueFamilies: s.queues.unique(),
		Extensions:    s.app.requiredDeviceExtensions(),
		Layers:        s.layers(),
	})
	if err != nil {
		s.release()
		return nil, errors.Wrapf(ErrDeviceCreationFailed, "%s: %v", best.info.Name, err)
	}

	s.graphicsQueue = drv.GetQueue(s.device, s.queues.graphics, 0)
	s.presentQueue = s.graphicsQueue
	if s.queues.separate() {
		s.presentQueue = drv.GetQueue(s.device, s.queues.present, 0)
		s.logger.Infof("separate present queue family %d (graphics %d)", s.queues.present, s.queues.graphics)
	}
	return s, nil
}

func (s *Session) createInstance() error {
	available, err := s.drv.AvailableInstanceExtensions()
	if err != nil {
		return errors.Wrap(err, "enumerate instance extensions")
	}
	wanted := mergeNames(s.provider.GetRequiredInstanceExtensions(), InstanceExtensionsWanted, s.app.InstanceExtensions)
	if s.app.Debug {
		wanted = mergeNames(wanted, DebugInstanceExtensions)
	}
	extensions, missing := checkExisting(available, wanted)
	if len(missing) > 0 {
		s.logger.Warningf("missing %d instance extensions: %s", len(missing), strings.Join(missing, ", "))
	}
	s.logger.Infof("enabling %d instance extensions", len(extensions))

	var layers []string
	if s.app.Debug {
		actual, err := s.drv.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "enumerate layers")
		}
		layers, missing = checkExisting(actual, mergeNames(ValidationLayersWanted, s.app.Layers))
		if len(missing) > 0 {
			s.logger.Warningf("missing %d validation layers: %s", len(missing), strings.Join(missing, ", "))
		}
	}
	s.app.Layers = layers

	s.instance, err = s.drv.CreateInstance(s.app.instanceInfo(extensions, layers))
	return errors.Wrap(err, "create instance")
}

func (s *Session) layers() []string {
	return s.app.Layers
}

func (s *Session) evaluateAll() ([]*candidate, error) {
	adapters, err := s.drv.EnumerateAdapters(s.instance)
	if err != nil {
		return nil, errors.Wrap(err, "enumerate adapters")
	}
	required := s.app.requiredDeviceExtensions()
	cands := make([]*candidate, 0, len(adapters))
	for _, info := range adapters {
		c, err := evaluateAdapter(s.drv, info, s.surface, required)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluate adapter %q", info.Name)
		}
		if !c.suitable {
			s.logger.Infof("adapter %q rejected: %s", info.Name, c.reason)
		} else if s.app.Policy.Rank(info.Type) == 0 {
			c.reason = "excluded by policy " + string(s.app.Policy)
		}
		cands = append(cands, c)
	}
	return cands, nil
}

func (s *Session) pickAdapter() (*candidate, []*candidate, error) {
	cands, err := s.evaluateAll()
	if err != nil {
		return nil, nil, err
	}
	return selectAdapter(cands, s.app.Policy), cands, nil
}

// ProbeAdapters evaluates every adapter against a surface from provider and
// releases everything it created before returning.
func ProbeAdapters(drv Driver, provider SurfaceProvider, app AppInfo) (reports []AdapterReport, err error) {
	defer checkErr(&err)

	s := &Session{drv: drv, app: app, provider: provider, logger: log.New("session")}
	if s.app.Policy == "" {
		s.app.Policy = PolicyPreferDiscrete
	}
	if _, ok := policyRanks[s.app.Policy]; !ok {
		return nil, errors.Wrapf(ErrUnknownPolicy, "%q", s.app.Policy)
	}
	defer s.release()

	if err := s.createInstance(); err != nil {
		return nil, err
	}
	if s.surface, err = drv.CreateSurface(s.instance, provider); err != nil {
		return nil, errors.Wrap(err, "create surface")
	}
	best, cands, err := s.pickAdapter()
	if err != nil {
		return nil, err
	}
	for _, c := range cands {
		r := c.report()
		r.Selected = c == best
		reports = append(reports, r)
	}
	return reports, nil
}

// release destroys whatever has been created so far, newest first.
func (s *Session) release() {
	if s.device != 0 {
		s.drv.DestroyDevice(s.device)
		s.device = 0
	}
	if s.surface != 0 {
		s.drv.DestroySurface(s.instance, s.surface)
		s.surface = 0
	}
	if s.instance != 0 {
		s.drv.DestroyInstance(s.instance)
		s.instance = 0
	}
}

func (s *Session) acquire() {
	s.dependents++
}

func (s *Session) releaseDependent() {
	if s.dependents > 0 {
		s.dependents--
	}
}

// Dependents returns the number of live objects created from the session.
func (s *Session) Dependents() int {
	return s.dependents
}

// WaitIdle blocks until the device has finished all submitted work.
func (s *Session) WaitIdle() error {
	if s.destroyed {
		return ErrDestroyed
	}
	return errors.Wrap(s.drv.DeviceWaitIdle(s.device), "wait idle")
}

// Destroy tears down surface, device and instance in that order. It refuses
// while dependents are alive.
func (s *Session) Destroy() error {
	if s.destroyed {
		return nil
	}
	if s.dependents > 0 {
		return errors.Wrapf(ErrSessionInUse, "%d dependents", s.dependents)
	}
	if s.device != 0 {
		if err := s.drv.DeviceWaitIdle(s.device); err != nil {
			s.logger.Warningf("wait idle before destroy: %v", err)
		}
	}
	if s.surface != 0 {
		s.drv.DestroySurface(s.instance, s.surface)
		s.surface = 0
	}
	if s.device != 0 {
		s.drv.DestroyDevice(s.device)
		s.device = 0
	}
	if s.instance != 0 {
		s.drv.DestroyInstance(s.instance)
		s.instance = 0
	}
	s.destroyed = true
	return nil
}

func (s *Session) Driver() Driver { return s.drv }
func (s *Session) Device() Device { return s.device }
func (s *Session) Surface() Surface { return s.surface }
func (s *Session) Instance() Instance { return s.instance }
func (s *Session) Adapter() AdapterInfo { return s.adapter }
func (s *Session) Provider() SurfaceProvider { return s.provider }
func (s *Session) GraphicsQueue() Queue { return s.graphicsQueue }
func (s *Session) PresentQueue() Queue { return s.presentQueue }
func (s *Session) GraphicsQueueFamilyIndex() uint32 { return s.queues.graphics }
func (s *Session) PresentQueueFamilyIndex() uint32 { return s.queues.present }

// HasSeparatePresentQueue is true when the present family differs from the graphics family.
func (s *Session) HasSeparatePresentQueue() bool { return s.queues.separate() }

// SurfaceDetails queries the current surface capabilities of the selected adapter.
func (s *Session) SurfaceDetails() (SurfaceDetails, error) {
	d, err := s.drv.SurfaceDetails(s.adapter.Handle, s.surface)
	return d, errors.Wrap(err, "surface details")
}
