package debugger

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// TUI is the terminal console reachable via the simulator's -d flag: a
// register panel, a memory panel of raw hex words, an output log, and a command
// input line, laid out with tview the same way the teacher's own debugger
// TUI composes its panels.
type TUI struct {
	Debugger *Debugger
	App      *tview.Application

	RegisterView *tview.TextView
	MemoryView   *tview.TextView
	OutputView   *tview.TextView
	CommandInput *tview.InputField

	MemoryAddress uint64
}

// NewTUI builds the console around an already-constructed Debugger.
func NewTUI(d *Debugger) *TUI {
	t := &TUI{
		Debugger: d,
		App:      tview.NewApplication(),
	}
	t.initializeViews()
	t.buildLayout()
	return t
}

func (t *TUI) initializeViews() {
	t.RegisterView = tview.NewTextView().SetDynamicColors(true)
	t.RegisterView.SetBorder(true).SetTitle(" Registers ")

	t.MemoryView = tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	t.MemoryView.SetBorder(true).SetTitle(" Memory ")

	t.OutputView = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	t.OutputView.SetBorder(true).SetTitle(" Output ")

	t.CommandInput = tview.NewInputField().SetLabel("(rvdb) ")
	t.CommandInput.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		line := t.CommandInput.GetText()
		t.CommandInput.SetText("")
		if err := t.Debugger.ExecuteCommand(line); err != nil {
			t.Debugger.Printf("error: %v\n", err)
		}
		t.refresh()
	})
}

func (t *TUI) buildLayout() {
	top := tview.NewFlex().
		AddItem(t.RegisterView, 0, 1, false).
		AddItem(t.MemoryView, 0, 1, false)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(top, 0, 3, false).
		AddItem(t.OutputView, 0, 2, false).
		AddItem(t.CommandInput, 1, 0, true)

	t.App.SetRoot(root, true).SetFocus(t.CommandInput)
}

func (t *TUI) refresh() {
	t.RegisterView.Clear()
	vm := t.Debugger.VM
	for i := 0; i < 32; i += 2 {
		fmt.Fprintf(t.RegisterView, "x%-2d=0x%016x  x%-2d=0x%016x\n",
			i, vm.Regs.RUsize(uint8(i)).Uint64(),
			i+1, vm.Regs.RUsize(uint8(i+1)).Uint64())
	}
	fmt.Fprintf(t.RegisterView, "pc =0x%016x\n", vm.PC.Uint64())

	t.MemoryView.Clear()
	base := t.MemoryAddress
	if base == 0 {
		base = vm.PC.Uint64()
	}
	for row := uint64(0); row < 8; row++ {
		addr := base + row*4
		w, err := vm.Mem.ReadU32(addr)
		if err != nil {
			fmt.Fprintf(t.MemoryView, "0x%016x: <fault>\n", addr)
			continue
		}
		fmt.Fprintf(t.MemoryView, "0x%016x: 0x%08x\n", addr, w)
	}

	if out := t.Debugger.GetOutput(); out != "" {
		fmt.Fprint(t.OutputView, out)
	}
}

// Run starts the tview event loop. It blocks until the console exits.
func (t *TUI) Run() error {
	t.refresh()
	return t.App.Run()
}
