package pdb

func Fuzz(data []byte) int {
	f, err := NewBytes(data, &Options{})
	if err != nil {
		return 0
	}
	err = f.Parse()
	if err != nil {
		return 0
	}
	types, err := f.OpenTypes()
	if err != nil {
		return 0
	}
	err = types.Enumerate(nil)
	if err != nil {
		return 0
	}
	return 1
}
