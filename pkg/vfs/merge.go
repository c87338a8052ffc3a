package vfs

// Merge folds overlay into base and returns base. File entries from the
// overlay overwrite base entries of the same name; subdirectories are
// always merged recursively, never replaced wholesale. For a fixed
// overlay order the result is deterministic; overlays touching disjoint
// paths commute.
func Merge(base, overlay *Directory) *Directory {
	if base == nil {
		base = &Directory{}
	}
	if overlay == nil {
		return base
	}

	for name, f := range overlay.Files {
		if base.Files == nil {
			base.Files = make(map[string]FileEntry)
		}
		base.Files[name] = f
	}
	for name, d := range overlay.Dirs {
		if base.Dirs == nil {
			base.Dirs = make(map[string]*Directory)
		}
		base.Dirs[name] = Merge(base.Dirs[name], d)
	}
	return base
}

// MergeAll merges the overlays into base in order.
func MergeAll(base *Directory, overlays ...*Directory) *Directory {
	for _, o := range overlays {
		base = Merge(base, o)
	}
	return base
}
