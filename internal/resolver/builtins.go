package resolver

import "github.com/mvp-joe/symbol-scanner/internal/extraction"

// Receivers that refer to the current instance or class. Calls through them
// need type information to resolve.
var receivers = set("self", "cls", "this", "base", "super")

var pythonBuiltins = set(
	"abs", "aiter", "all", "anext", "any", "ascii", "bin", "bool", "breakpoint",
	"bytearray", "bytes", "callable", "chr", "classmethod", "compile", "complex",
	"delattr", "dict", "dir", "divmod", "enumerate", "eval", "exec", "filter",
	"float", "format", "frozenset", "getattr", "globals", "hasattr", "hash",
	"help", "hex", "id", "input", "int", "isinstance", "issubclass", "iter",
	"len", "list", "locals", "map", "max", "memoryview", "min", "next", "object",
	"oct", "open", "ord", "pow", "print", "property", "range", "repr",
	"reversed", "round", "set", "setattr", "slice", "sorted", "staticmethod",
	"str", "sum", "super", "tuple", "type", "vars", "zip", "__import__",
)

var ecmaGlobals = set(
	"Array", "ArrayBuffer", "BigInt", "Boolean", "DataView", "Date", "Error",
	"EvalError", "Function", "Map", "Number", "Object", "Promise", "Proxy",
	"RangeError", "ReferenceError", "RegExp", "Set", "String", "Symbol",
	"SyntaxError", "TypeError", "URIError", "URL", "URLSearchParams", "WeakMap",
	"WeakRef", "WeakSet", "atob", "btoa", "clearInterval", "clearTimeout",
	"decodeURI", "decodeURIComponent", "encodeURI", "encodeURIComponent", "eval",
	"fetch", "isFinite", "isNaN", "parseFloat", "parseInt", "queueMicrotask",
	"require", "setImmediate", "setInterval", "setTimeout", "structuredClone",
	"super",
)

var csharpBuiltins = set("nameof")

// Top-level Python standard library packages. Imports of these never resolve
// to repository files, even if a file of the same name exists.
var pythonStdlib = set(
	"__future__", "_typeshed", "abc", "argparse", "array", "ast", "asyncio",
	"atexit", "base64", "bdb", "binascii", "bisect", "builtins", "bz2",
	"calendar", "cmath", "cmd", "code", "codecs", "collections", "colorsys",
	"compileall", "concurrent", "configparser", "contextlib", "contextvars",
	"copy", "copyreg", "cProfile", "csv", "ctypes", "curses", "dataclasses",
	"datetime", "dbm", "decimal", "difflib", "dis", "doctest", "email",
	"encodings", "enum", "errno", "faulthandler", "fcntl", "filecmp",
	"fileinput", "fnmatch", "fractions", "ftplib", "functools", "gc", "getopt",
	"getpass", "gettext", "glob", "graphlib", "grp", "gzip", "hashlib", "heapq",
	"hmac", "html", "http", "imaplib", "importlib", "inspect", "io", "ipaddress",
	"itertools", "json", "keyword", "linecache", "locale", "logging", "lzma",
	"mailbox", "marshal", "math", "mimetypes", "mmap", "multiprocessing",
	"netrc", "numbers", "operator", "optparse", "os", "pathlib", "pdb",
	"pickle", "pkgutil", "platform", "plistlib", "poplib", "posixpath",
	"pprint", "profile", "pstats", "pty", "pwd", "py_compile", "pydoc",
	"queue", "random", "re", "readline", "reprlib", "resource", "runpy",
	"sched", "secrets", "select", "selectors", "shelve", "shlex", "shutil",
	"signal", "site", "smtplib", "socket", "socketserver", "sqlite3", "ssl",
	"stat", "statistics", "string", "struct", "subprocess", "symtable", "sys",
	"sysconfig", "syslog", "tarfile", "tempfile", "termios", "test",
	"textwrap", "threading", "time", "timeit", "tkinter", "token", "tokenize",
	"tomllib", "trace", "traceback", "tracemalloc", "tty", "types", "typing",
	"typing_extensions", "unicodedata", "unittest", "urllib", "uuid", "venv",
	"warnings", "wave", "weakref", "webbrowser", "wsgiref", "xml", "xmlrpc",
	"zipapp", "zipfile", "zipimport", "zlib", "zoneinfo",
)

func isBuiltin(lang extraction.Language, name string) bool {
	switch lang {
	case extraction.Python:
		return pythonBuiltins[name]
	case extraction.JavaScript, extraction.TypeScript:
		return ecmaGlobals[name]
	case extraction.CSharp:
		return csharpBuiltins[name]
	}
	return false
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, item := range items {
		m[item] = true
	}
	return m
}
