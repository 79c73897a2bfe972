package main

import (
	"fmt"

	"stackvm/vm"
)

// Demo syscall table: negative CALL targets -1, -2, -3 map to slots 0, 1,
// 2. A guest module written against this host can print an integer,
// print a C string already in its heap, and abort itself.
const (
	sysPrintInt = -1
	sysPrintStr = -2
	sysAbort    = -3
)

func registerDemoSyscalls(env *vm.Environment) {
	must(env.Register(sysPrintInt, func(m *vm.VM) error {
		fmt.Println(int32(m.Arg(0)))
		return nil
	}))
	must(env.Register(sysPrintStr, func(m *vm.VM) error {
		s, err := m.ArgString(0)
		if err != nil {
			return err
		}
		fmt.Println(string(s))
		return nil
	}))
	must(env.Register(sysAbort, func(m *vm.VM) error {
		m.Abort("guest requested abort")
		return nil
	}))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
