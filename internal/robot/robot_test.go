package robot

import (
	"context"
	"errors"
	"math"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/san-kum/diffbot/internal/config"
	"github.com/san-kum/diffbot/internal/control"
	"github.com/san-kum/diffbot/internal/dynamo"
	"github.com/san-kum/diffbot/internal/hal"
	"github.com/san-kum/diffbot/internal/metrics"
	"github.com/san-kum/diffbot/internal/plant"
)

func TestRobot(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Robot Suite")
}

func newSimHAL(cfg *config.Config) *hal.Sim {
	return hal.NewSim(
		[]string{cfg.HAL.ButtonPause, cfg.HAL.ButtonMode},
		[]string{cfg.HAL.LEDGreen, cfg.HAL.LEDRed},
	)
}

var _ = Describe("Robot", func() {
	var (
		cfg *config.Config
		io  *hal.Sim
		r   *Robot
		lv  *Levels
		ev  *Events
		now float64
	)

	tick := func() {
		r.Tick(now)
		now += cfg.Dt
	}
	tickN := func(n int) {
		for i := 0; i < n; i++ {
			tick()
		}
	}
	leds := func() (bool, bool) {
		green, err := io.Output(cfg.HAL.LEDGreen)
		Expect(err).NotTo(HaveOccurred())
		red, err := io.Output(cfg.HAL.LEDRed)
		Expect(err).NotTo(HaveOccurred())
		return green, red
	}
	boot := func() {
		r.PowerUp()
		tickN(2)
		Expect(r.Level()).To(Equal(lv.SystemOn))
	}
	toMotorPowerOn := func() {
		boot()
		tickN(100)
		Expect(r.Level()).To(Equal(lv.MotorPowerOn))
	}

	BeforeEach(func() {
		cfg = config.DefaultConfig()
		io = newSimHAL(cfg)
		now = 0
		var err error
		r, err = New(cfg, Options{HAL: io, Logger: zap.NewNop().Sugar()})
		Expect(err).NotTo(HaveOccurred())
		lv, ev = r.Levels(), r.Events()
	})

	It("starts in SystemOff with the control graph stopped", func() {
		Expect(r.Level()).To(Equal(lv.SystemOff))
		Expect(r.Pipeline().Running()).To(BeFalse())
		Expect(r.Pipeline().Odometry().Enabled()).To(BeFalse())
	})

	It("boots through StartingUp into SystemOn", func() {
		r.PowerUp()

		tick()
		Expect(r.Level()).To(Equal(lv.StartingUp))
		Expect(r.Pipeline().Running()).To(BeTrue())
		green, red := leds()
		Expect(green).To(BeTrue())
		Expect(red).To(BeFalse())

		tick()
		Expect(r.Level()).To(Equal(lv.SystemOn))
		Expect(r.Pipeline().Odometry().Enabled()).To(BeTrue())
		green, red = leds()
		Expect(green).To(BeTrue())
		Expect(red).To(BeFalse())
	})

	It("honours the residency times of SystemOn and MotorPowerOn", func() {
		boot()

		tickN(99)
		Expect(r.Level()).To(Equal(lv.SystemOn))
		Expect(lv.SystemOn.ActivationCount()).To(BeEquivalentTo(100))
		tick()
		Expect(r.Level()).To(Equal(lv.MotorPowerOn))

		tickN(499)
		Expect(r.Level()).To(Equal(lv.MotorPowerOn))
		tick()
		Expect(r.Level()).To(Equal(lv.SystemMoving))
	})

	It("falls back to MotorPowerOn when pause is pressed while moving", func() {
		toMotorPowerOn()
		tickN(500)
		Expect(r.Level()).To(Equal(lv.SystemMoving))

		Expect(io.Press(cfg.HAL.ButtonPause)).To(Succeed())
		tick()
		Expect(r.Level()).To(Equal(lv.MotorPowerOn))
		green, red := leds()
		Expect(green).To(BeTrue())
		Expect(red).To(BeFalse())
	})

	It("brakes into Emergency when pause is pressed with motor power on", func() {
		toMotorPowerOn()

		Expect(io.Press(cfg.HAL.ButtonPause)).To(Succeed())
		tick()
		Expect(r.Level()).To(Equal(lv.EmergencyBraking))
		Expect(r.Pipeline().Running()).To(BeTrue())
		green, red := leds()
		Expect(green).To(BeTrue())
		Expect(red).To(BeTrue())

		tick()
		Expect(r.Level()).To(Equal(lv.Emergency))
		Expect(r.Pipeline().Running()).To(BeFalse())
		green, red = leds()
		Expect(green).To(BeTrue())
		Expect(red).To(BeTrue())
	})

	It("resets an emergency with the mode button", func() {
		toMotorPowerOn()
		Expect(io.Press(cfg.HAL.ButtonPause)).To(Succeed())
		tickN(2)
		Expect(r.Level()).To(Equal(lv.Emergency))

		Expect(io.Release(cfg.HAL.ButtonPause)).To(Succeed())
		tickN(10)
		Expect(r.Level()).To(Equal(lv.Emergency))

		Expect(io.Press(cfg.HAL.ButtonMode)).To(Succeed())
		tick()
		Expect(r.Level()).To(Equal(lv.SystemOn))
		Expect(r.Pipeline().Running()).To(BeTrue())
	})

	It("shuts down on abort and stops the executor", func() {
		toMotorPowerOn()

		r.TriggerEvent(ev.Abort)
		tick()
		Expect(r.Level()).To(Equal(lv.ShuttingDown))
		Expect(r.Pipeline().Running()).To(BeFalse())
		green, red := leds()
		Expect(green).To(BeFalse())
		Expect(red).To(BeTrue())

		tick()
		Expect(r.Level()).To(Equal(lv.SystemOff))
		Expect(r.Executor().Stopped()).To(BeTrue())
		green, red = leds()
		Expect(green).To(BeFalse())
		Expect(red).To(BeFalse())
	})

	It("brakes before shutting down when aborted while moving", func() {
		toMotorPowerOn()
		tickN(500)
		Expect(r.Level()).To(Equal(lv.SystemMoving))

		r.Shutdown()
		tick()
		Expect(r.Level()).To(Equal(lv.Braking))
		Expect(r.Pipeline().Running()).To(BeTrue())
		tickN(2)
		Expect(r.Level()).To(Equal(lv.SystemOff))
	})

	It("shuts down again after a power cycle", func() {
		for cycle := 0; cycle < 2; cycle++ {
			boot()
			r.Shutdown()
			tickN(3)
			Expect(r.Level()).To(Equal(lv.SystemOff))
		}
	})

	It("drops events the current level does not accept", func() {
		r.TriggerEvent(ev.StartMoving)
		tick()
		Expect(r.Level()).To(Equal(lv.SystemOff))
	})

	It("ignores the pause button outside the checked levels", func() {
		Expect(io.Press(cfg.HAL.ButtonPause)).To(Succeed())
		tickN(5)
		Expect(r.Level()).To(Equal(lv.SystemOff))
	})

	It("rejects a pose reset while the odometry runs", func() {
		Expect(r.SetPose(control.Pose{GrR: dynamo.Vec2{1, 2}, Phi: 0.5})).To(Succeed())
		boot()
		err := r.SetPose(control.Pose{})
		Expect(errors.Is(err, dynamo.ErrIntegratorReinitWhileEnabled)).To(BeTrue())
		Expect(r.Pipeline().Pose().GrR).To(Equal(dynamo.Vec2{1, 2}))
	})

	It("runs the task from the executor until SystemOff is reached", func() {
		r.PowerUp()
		n, err := r.RunSteps(context.Background(), 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(5))
		Expect(r.Level()).To(Equal(lv.SystemOn))

		r.Shutdown()
		n, err = r.RunSteps(context.Background(), 50)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeNumerically("<", 50))
		Expect(r.Level()).To(Equal(lv.SystemOff))
		Expect(r.Executor().Stopped()).To(BeTrue())
	})

	It("keeps the time domain running exactly in the operational levels", func() {
		var samples []Sample
		var err error
		r, err = New(cfg, Options{HAL: io, OnTick: func(s Sample) { samples = append(samples, s) }})
		Expect(err).NotTo(HaveOccurred())
		lv = r.Levels()

		r.PowerUp()
		tickN(700)
		Expect(io.Press(cfg.HAL.ButtonPause)).To(Succeed())
		tickN(5)
		Expect(io.Release(cfg.HAL.ButtonPause)).To(Succeed())
		Expect(io.Press(cfg.HAL.ButtonMode)).To(Succeed())
		tickN(5)
		r.Shutdown()
		tickN(5)

		Expect(samples).NotTo(BeEmpty())
		for _, s := range samples {
			Expect(s.Running).To(Equal(lv.Operational(s.Level)), "level %s at %.2f", s.Level, s.Time)
			if !s.Running {
				Expect(s.Torque).To(Equal(dynamo.Vec2{}))
			}
		}
	})
})

var _ = Describe("Robot construction", func() {
	It("rejects an invalid configuration", func() {
		cfg := config.DefaultConfig()
		cfg.Dt = 0
		_, err := New(cfg, Options{HAL: newSimHAL(config.DefaultConfig())})
		Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
	})

	It("reports missing HAL I/O", func() {
		cfg := config.DefaultConfig()
		io := hal.NewSim([]string{cfg.HAL.ButtonPause}, []string{cfg.HAL.LEDGreen, cfg.HAL.LEDRed})
		_, err := New(cfg, Options{HAL: io})
		Expect(errors.Is(err, dynamo.ErrHALMissingIO)).To(BeTrue())
	})

	It("rejects a script with an unknown event", func() {
		cfg := config.DefaultConfig()
		cfg.Script = []config.ScriptStep{{At: 1, Action: config.ActionEvent, Event: "teleport"}}
		_, err := New(cfg, Options{HAL: newSimHAL(cfg)})
		Expect(errors.Is(err, dynamo.ErrInvalidConfig)).To(BeTrue())
	})
})

var _ = Describe("Closed loop", func() {
	It("drives forward and comes to rest in Emergency", func() {
		cfg := config.DefaultConfig()
		cfg.Script = []config.ScriptStep{{At: 0, Action: config.ActionEvent, Event: "doSystemOn"}}
		sim, err := plant.NewSim(plant.NewWheels(cfg.Plant.Inertia, cfg.Plant.Friction), cfg.Integrator, cfg.Dt)
		Expect(err).NotTo(HaveOccurred())

		reg := prometheus.NewRegistry()
		r, err := New(cfg, Options{HAL: newSimHAL(cfg), Plant: sim, Registry: reg})
		Expect(err).NotTo(HaveOccurred())

		_, err = r.RunSteps(context.Background(), 1300)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Level()).To(Equal(r.Levels().Emergency))

		pose := r.Pipeline().Pose()
		Expect(pose.GrR[0]).To(BeNumerically("~", 0.5, 0.1))
		Expect(math.Abs(pose.GrR[1])).To(BeNumerically("<", 1e-9))
		Expect(math.Abs(pose.Phi)).To(BeNumerically("<", 1e-9))

		samples, err := metrics.Snapshot(reg)
		Expect(err).NotTo(HaveOccurred())
		var ticks float64
		for _, s := range samples {
			if s.Name == "diffbot_supervisor_ticks_total" {
				ticks = s.Value
			}
		}
		Expect(ticks).To(BeNumerically("==", 1300))
	})
})
