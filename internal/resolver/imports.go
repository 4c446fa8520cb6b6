package resolver

import (
	"path"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
)

// binding is a local name bound by a name import.
type binding struct {
	file     string // resolved target file
	original string // name as declared in the target
}

// FileImports is what one file can see through its imports.
type FileImports struct {
	// ModuleAliases maps a local name to the file of the module it binds.
	ModuleAliases map[string]string

	// Names maps a local name to the files it was imported from.
	Names map[string][]binding

	// StarSources are files whose exported names are all visible.
	StarSources []string

	// Usings are namespaces the file opens (C#).
	Usings []string
}

func newFileImports() *FileImports {
	return &FileImports{
		ModuleAliases: make(map[string]string),
		Names:         make(map[string][]binding),
	}
}

// Edge attribute recording what a file re-exports from an edge's target:
// "*" for everything, otherwise a comma-joined list of names.
const reexportAttr = "reexport"

// ImportGraph holds per-file import visibility and the file-level import graph.
type ImportGraph struct {
	files     map[string]*FileImports
	graph     graph.Graph[string, string]
	adjacency map[string]map[string]graph.Edge[string]
}

// edgeInfo accumulates everything known about one importer -> target edge.
type edgeInfo struct {
	reexportAll   bool
	reexportNames []string
}

var ecmaExtensions = []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx", ".mts", ".cts"}

// BuildImportGraph resolves every import of repo to repository files.
func BuildImportGraph(repo *extraction.RepositoryExtraction, index *Index) *ImportGraph {
	g := &ImportGraph{
		files: make(map[string]*FileImports),
		graph: graph.New(graph.StringHash, graph.Directed()),
	}
	for _, file := range repo.Files() {
		_ = g.graph.AddVertex(file)
	}

	r := &moduleResolver{languages: repo.Languages, index: index}
	r.buildSuffixIndex()

	var globalUsings []string
	edges := make(map[[2]string]*edgeInfo)
	var edgeOrder [][2]string
	addEdge := func(from, to string) *edgeInfo {
		key := [2]string{from, to}
		info, ok := edges[key]
		if !ok {
			info = &edgeInfo{}
			edges[key] = info
			edgeOrder = append(edgeOrder, key)
		}
		return info
	}

	for _, imp := range repo.Imports {
		lang := repo.Languages[imp.File]
		fi := g.forFile(imp.File)

		if lang == extraction.CSharp {
			switch imp.ImportType {
			case "extern":
			case "global":
				globalUsings = append(globalUsings, imp.ImportedPath)
			case "using_static":
				// The members of the type are in scope, and so is its namespace.
				fi.Usings = append(fi.Usings, imp.ImportedPath)
				if i := strings.LastIndex(imp.ImportedPath, "."); i > 0 {
					fi.Usings = append(fi.Usings, imp.ImportedPath[:i])
				}
			default:
				if imp.Alias == "" {
					fi.Usings = append(fi.Usings, imp.ImportedPath)
				}
			}
			continue
		}

		if imp.ImportType == "dynamic" || imp.ImportType == "side_effect" {
			continue
		}

		target, ok := r.resolve(lang, imp.ImportedPath, imp.File)
		if !ok {
			// from pkg import mod, where mod is a submodule.
			if lang == extraction.Python && !imp.IsWholeModule() && !imp.IsWildcard() {
				if sub, ok := r.resolve(lang, joinModule(imp.ImportedPath, imp.ImportedSymbols), imp.File); ok {
					fi.ModuleAliases[imp.LocalName()] = sub
					addEdge(imp.File, sub)
				}
			}
			continue
		}
		info := addEdge(imp.File, target)

		if imp.ImportType == "re_export" {
			if imp.IsWildcard() {
				info.reexportAll = true
			} else {
				info.reexportNames = append(info.reexportNames, imp.ImportedSymbols)
			}
			continue
		}

		switch {
		case imp.IsWildcard() && imp.Alias != "":
			// import * as ns from "./x"
			fi.ModuleAliases[imp.Alias] = target
		case imp.IsWildcard():
			fi.StarSources = append(fi.StarSources, target)
			if lang == extraction.Python && path.Base(imp.File) == "__init__.py" {
				info.reexportAll = true
			}
		case imp.IsWholeModule():
			local := imp.Alias
			if local == "" {
				local = strings.Split(imp.ImportedPath, ".")[0]
				if lang == extraction.Python && local != imp.ImportedPath {
					// import a.b binds a.
					if top, ok := r.resolve(lang, local, imp.File); ok {
						target = top
					} else {
						continue
					}
				}
			}
			fi.ModuleAliases[local] = target
			if lang != extraction.Python {
				// A default import binds the module's default export.
				fi.Names[local] = append(fi.Names[local], binding{file: target, original: local})
			}
		default:
			if lang == extraction.Python && !r.declaresOrIsModule(target, imp.ImportedSymbols) {
				if sub, ok := r.resolve(lang, joinModule(imp.ImportedPath, imp.ImportedSymbols), imp.File); ok {
					fi.ModuleAliases[imp.LocalName()] = sub
					addEdge(imp.File, sub)
					continue
				}
			}
			local := imp.LocalName()
			fi.Names[local] = append(fi.Names[local], binding{file: target, original: imp.ImportedSymbols})
		}
	}

	if len(globalUsings) > 0 {
		for file, lang := range repo.Languages {
			if lang == extraction.CSharp {
				fi := g.forFile(file)
				fi.Usings = append(fi.Usings, globalUsings...)
			}
		}
	}

	for _, key := range edgeOrder {
		info := edges[key]
		var opts []func(*graph.EdgeProperties)
		switch {
		case info.reexportAll:
			opts = append(opts, graph.EdgeAttribute(reexportAttr, extraction.Wildcard))
		case len(info.reexportNames) > 0:
			opts = append(opts, graph.EdgeAttribute(reexportAttr, strings.Join(info.reexportNames, ",")))
		}
		_ = g.graph.AddEdge(key[0], key[1], opts...)
	}

	adjacency, err := g.graph.AdjacencyMap()
	if err != nil {
		adjacency = map[string]map[string]graph.Edge[string]{}
	}
	g.adjacency = adjacency
	return g
}

func (g *ImportGraph) forFile(file string) *FileImports {
	fi, ok := g.files[file]
	if !ok {
		fi = newFileImports()
		g.files[file] = fi
	}
	return fi
}

// For returns the imports visible in file. The result is never nil.
func (g *ImportGraph) For(file string) *FileImports {
	if fi, ok := g.files[file]; ok {
		return fi
	}
	return newFileImports()
}

// Dependencies returns the repository files that file imports, sorted.
func (g *ImportGraph) Dependencies(file string) []string {
	var out []string
	for target := range g.adjacency[file] {
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}

// EdgeCount returns the number of file-level import edges.
func (g *ImportGraph) EdgeCount() int {
	n, err := g.graph.Size()
	if err != nil {
		return 0
	}
	return n
}

// Exporters returns the files that make name available from file: file itself
// if it declares name at the top level, otherwise whatever its re-exports
// lead to.
func (g *ImportGraph) Exporters(index *Index, file, name string) []string {
	visited := make(map[string]bool)
	found := make(map[string]bool)

	var visit func(f string)
	visit = func(f string) {
		if visited[f] {
			return
		}
		visited[f] = true
		if index.DeclaresTopLevel(f, name) {
			found[f] = true
			return
		}
		for target, edge := range g.adjacency[f] {
			attr, ok := edge.Properties.Attributes[reexportAttr]
			if !ok {
				continue
			}
			if attr == extraction.Wildcard || containsName(attr, name) {
				visit(target)
			}
		}
	}
	visit(file)

	out := make([]string, 0, len(found))
	for f := range found {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func containsName(list, name string) bool {
	for _, n := range strings.Split(list, ",") {
		if n == name {
			return true
		}
	}
	return false
}

func joinModule(module, name string) string {
	if strings.HasSuffix(module, ".") {
		return module + name
	}
	return module + "." + name
}

// moduleResolver maps import specifiers to repository files.
type moduleResolver struct {
	languages map[string]extraction.Language
	suffixes  map[string][]string // "pkg/mod.py" -> files ending with it
	index     *Index
}

func (r *moduleResolver) buildSuffixIndex() {
	r.suffixes = make(map[string][]string)
	for file, lang := range r.languages {
		if lang != extraction.Python {
			continue
		}
		parts := strings.Split(file, "/")
		for i := 1; i < len(parts); i++ {
			suffix := strings.Join(parts[i:], "/")
			r.suffixes[suffix] = append(r.suffixes[suffix], file)
		}
	}
}

func (r *moduleResolver) has(file string) bool {
	_, ok := r.languages[file]
	return ok
}

// declaresOrIsModule is true unless target is known not to declare name.
func (r *moduleResolver) declaresOrIsModule(target, name string) bool {
	return r.index == nil || r.index.DeclaresTopLevel(target, name)
}

func (r *moduleResolver) resolve(lang extraction.Language, spec, fromFile string) (string, bool) {
	switch lang {
	case extraction.Python:
		return r.resolvePython(spec, fromFile)
	case extraction.JavaScript, extraction.TypeScript:
		return r.resolveECMAScript(spec, fromFile)
	}
	return "", false
}

func (r *moduleResolver) resolvePython(spec, fromFile string) (string, bool) {
	if strings.HasPrefix(spec, ".") {
		level := len(spec) - len(strings.TrimLeft(spec, "."))
		dir := path.Dir(fromFile)
		for i := 1; i < level; i++ {
			if dir == "." {
				return "", false
			}
			dir = path.Dir(dir)
		}
		rest := strings.ReplaceAll(spec[level:], ".", "/")
		base := dir
		if rest != "" {
			base = path.Join(dir, rest)
		}
		return r.pythonCandidates(base)
	}

	if pythonStdlib[strings.Split(spec, ".")[0]] {
		return "", false
	}
	base := strings.ReplaceAll(spec, ".", "/")
	if file, ok := r.pythonCandidates(base); ok {
		return file, true
	}

	// Source roots such as src/ are not configured; accept a unique suffix match.
	for _, candidate := range []string{base + ".py", base + "/__init__.py"} {
		if files := r.suffixes[candidate]; len(files) == 1 {
			return files[0], true
		}
	}
	return "", false
}

func (r *moduleResolver) pythonCandidates(base string) (string, bool) {
	for _, candidate := range []string{base + ".py", base + ".pyi", base + "/__init__.py"} {
		candidate = path.Clean(candidate)
		if r.has(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (r *moduleResolver) resolveECMAScript(spec, fromFile string) (string, bool) {
	if !strings.HasPrefix(spec, "./") && !strings.HasPrefix(spec, "../") {
		// Bare specifiers are packages or Node builtins.
		return "", false
	}
	base := path.Join(path.Dir(fromFile), spec)
	if r.has(base) {
		return base, true
	}

	stems := []string{base}
	if ext := path.Ext(base); ext != "" {
		// "./dom.js" may name dom.ts in a TypeScript project.
		stems = append(stems, strings.TrimSuffix(base, ext))
	}
	for _, stem := range stems {
		for _, ext := range ecmaExtensions {
			if r.has(stem + ext) {
				return stem + ext, true
			}
		}
	}
	for _, ext := range ecmaExtensions {
		if candidate := base + "/index" + ext; r.has(candidate) {
			return candidate, true
		}
	}
	return "", false
}
