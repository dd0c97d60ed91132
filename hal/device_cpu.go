//go:build tinygo && baremetal && stm32f103

package hal

import (
	"device/arm"
	"device/stm32"
	"fmt"
	"runtime/interrupt"
	"runtime/volatile"
	"sync/atomic"
	"time"
)

// deviceCPU is PRIMASK and WFI. A pending interrupt ends WFI even while
// PRIMASK masks it.
type deviceCPU struct{}

func (deviceCPU) DisableInterrupts() IRQState {
	return IRQState(interrupt.Disable())
}

func (deviceCPU) RestoreInterrupts(state IRQState) {
	interrupt.Restore(interrupt.State(state))
}

func (deviceCPU) WaitForInterrupt() { arm.Asm("wfi") }

// deviceInterrupts owns the TIM2 vector. EXTI9_5 belongs to the machine
// package pin interrupts, so the button line is gated in software.
type deviceInterrupts struct {
	fn      func(IRQ)
	tim2    interrupt.Interrupt
	buttons atomic.Bool
}

var theInterrupts *deviceInterrupts

func newDeviceInterrupts() *deviceInterrupts {
	ic := &deviceInterrupts{}
	ic.tim2 = interrupt.New(stm32.IRQ_TIM2, func(interrupt.Interrupt) {
		theInterrupts.fire(IRQTickTimer)
	})
	theInterrupts = ic
	return ic
}

func (ic *deviceInterrupts) Enable(line IRQ) error {
	switch line {
	case IRQTickTimer:
		ic.tim2.SetPriority(0xC0)
		ic.tim2.Enable()
	case IRQButtons:
		ic.buttons.Store(true)
	default:
		return fmt.Errorf("nvic: irq %d not wired", line)
	}
	return nil
}

func (ic *deviceInterrupts) Disable(line IRQ) {
	switch line {
	case IRQTickTimer:
		ic.tim2.Disable()
	case IRQButtons:
		ic.buttons.Store(false)
	}
}

func (ic *deviceInterrupts) SetHandler(fn func(line IRQ)) {
	mask := interrupt.Disable()
	ic.fn = fn
	interrupt.Restore(mask)
}

func (ic *deviceInterrupts) fire(line IRQ) {
	if line == IRQButtons && !ic.buttons.Load() {
		return
	}
	if ic.fn != nil {
		ic.fn(line)
	}
}

// deviceTickTimer is TIM2. APB1 runs at 36 MHz with a prescaler, so the
// timer input is doubled to 72 MHz.
type deviceTickTimer struct{}

func (deviceTickTimer) ClockHz() uint32 { return 72_000_000 }

func (deviceTickTimer) Reset() {
	stm32.RCC.APB1RSTR.SetBits(stm32.RCC_APB1RSTR_TIM2RST)
	stm32.RCC.APB1RSTR.ClearBits(stm32.RCC_APB1RSTR_TIM2RST)
}

func (deviceTickTimer) Configure(prescaler, reload uint32) error {
	if prescaler > 0xFFFF || reload > 0xFFFF {
		return fmt.Errorf("tim2: psc=%d arr=%d out of range", prescaler, reload)
	}
	stm32.RCC.APB1ENR.SetBits(stm32.RCC_APB1ENR_TIM2EN)
	_ = stm32.RCC.APB1ENR.Get()

	stm32.TIM2.PSC.Set(prescaler)
	stm32.TIM2.ARR.Set(reload)
	// Load PSC now; the update event also sets UIF, which must not count.
	stm32.TIM2.EGR.SetBits(stm32.TIM_EGR_UG)
	stm32.TIM2.SR.ClearBits(stm32.TIM_SR_UIF)
	stm32.TIM2.DIER.SetBits(stm32.TIM_DIER_UIE)
	return nil
}

func (deviceTickTimer) Start()              { stm32.TIM2.CR1.SetBits(stm32.TIM_CR1_CEN) }
func (deviceTickTimer) Stop()               { stm32.TIM2.CR1.ClearBits(stm32.TIM_CR1_CEN) }
func (deviceTickTimer) UpdatePending() bool { return stm32.TIM2.SR.HasBits(stm32.TIM_SR_UIF) }
func (deviceTickTimer) ClearUpdate()        { stm32.TIM2.SR.ClearBits(stm32.TIM_SR_UIF) }

// IWDG key register values.
const (
	iwdgKeyReload = 0xAAAA
	iwdgKeyAccess = 0x5555
	iwdgKeyStart  = 0xCCCC
)

// deviceWatchdog is the IWDG.
type deviceWatchdog struct{}

func (deviceWatchdog) Configure(timeout time.Duration) error {
	pr, rl, err := iwdgParams(timeout)
	if err != nil {
		return err
	}
	stm32.IWDG.KR.Set(iwdgKeyAccess)
	stm32.IWDG.PR.Set(pr)
	stm32.IWDG.RLR.Set(rl)
	for stm32.IWDG.SR.Get() != 0 {
	}
	stm32.IWDG.KR.Set(iwdgKeyReload)
	return nil
}

func (deviceWatchdog) Start() error {
	stm32.IWDG.KR.Set(iwdgKeyStart)
	return nil
}

func (deviceWatchdog) Update() { stm32.IWDG.KR.Set(iwdgKeyReload) }

// deviceBackup is BKP_DR1..BKP_DR10. Writes need the backup domain unlocked.
type deviceBackup struct {
	regs [10]*volatile.Register32
}

func newDeviceBackup() *deviceBackup {
	stm32.RCC.APB1ENR.SetBits(stm32.RCC_APB1ENR_PWREN | stm32.RCC_APB1ENR_BKPEN)
	_ = stm32.RCC.APB1ENR.Get()
	stm32.PWR.CR.SetBits(stm32.PWR_CR_DBP)
	return &deviceBackup{regs: [10]*volatile.Register32{
		&stm32.BKP.DR1, &stm32.BKP.DR2, &stm32.BKP.DR3, &stm32.BKP.DR4, &stm32.BKP.DR5,
		&stm32.BKP.DR6, &stm32.BKP.DR7, &stm32.BKP.DR8, &stm32.BKP.DR9, &stm32.BKP.DR10,
	}}
}

func (b *deviceBackup) Len() int { return len(b.regs) }

func (b *deviceBackup) Load(i int) uint16 {
	if i < 0 || i >= len(b.regs) {
		return 0
	}
	return uint16(b.regs[i].Get())
}

func (b *deviceBackup) Store(i int, v uint16) {
	if i < 0 || i >= len(b.regs) {
		return
	}
	b.regs[i].Set(uint32(v))
}

// deviceResetFlags reads RCC_CSR.
type deviceResetFlags struct{}

var csrFlags = [...]struct {
	csr  uint32
	flag uint32
}{
	{stm32.RCC_CSR_PINRSTF, ResetFlagPin},
	{stm32.RCC_CSR_PORRSTF, ResetFlagPowerOn},
	{stm32.RCC_CSR_SFTRSTF, ResetFlagSoftware},
	{stm32.RCC_CSR_IWDGRSTF, ResetFlagIndependentWatchdog},
	{stm32.RCC_CSR_WWDGRSTF, ResetFlagWindowWatchdog},
	{stm32.RCC_CSR_LPWRRSTF, ResetFlagLowPower},
}

func (deviceResetFlags) Flags() uint32 {
	csr := stm32.RCC.CSR.Get()
	var flags uint32
	for _, f := range csrFlags {
		if csr&f.csr != 0 {
			flags |= f.flag
		}
	}
	return flags
}

func (deviceResetFlags) Clear() { stm32.RCC.CSR.SetBits(stm32.RCC_CSR_RMVF) }
