package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func passByName(t *testing.T, name string) RewritePass {
	t.Helper()
	for _, p := range RewritePasses {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no rewrite pass named %q", name)
	return RewritePass{}
}

func TestRewritePasses_Order(t *testing.T) {
	var names []string
	for _, p := range RewritePasses {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{
		"strip-imports",
		"strip-type-declarations",
		"strip-typed-signatures",
		"strip-return-types",
		"strip-param-types",
		"strip-exports",
		"collapse-blank-lines",
	}, names)
}

func TestStripImports(t *testing.T) {
	p := passByName(t, "strip-imports")
	tests := []struct {
		name, in, want string
	}{
		{"default", "import React from 'react';\nx();", "x();"},
		{"named multiline", "import {\n  a,\n  b,\n} from \"lib\";\nx();", "x();"},
		{"namespace", "import * as R from 'ramda'\nx();", "x();"},
		{"side effect", "import './index.css';\nx();", "x();"},
		{"type only", "import type { P } from './types';\nx();", "x();"},
		{"dynamic import kept", "const m = import('./m');", "const m = import('./m');"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Apply(tt.in))
		})
	}
}

func TestStripTypeDeclarations(t *testing.T) {
	p := passByName(t, "strip-type-declarations")

	in := "export interface Props {\n  user: { name: string };\n}\ntype Size =\n  | 'sm'\n  | 'lg';\ntype Fn = (a: number) => void;\nconst keep = 1;\n"
	assert.Equal(t, "const keep = 1;\n", p.Apply(in))
}

func TestStripTypedSignatures(t *testing.T) {
	p := passByName(t, "strip-typed-signatures")

	assert.Equal(t, "const Card = (p) => null;", p.Apply("const Card: React.FC<Props> = (p) => null;"))
	assert.Equal(t, "const [v] = useState([]);", p.Apply("const [v] = useState<Item[]>([]);"))
	assert.Equal(t, "const el = ref.current.value;", p.Apply("const el = ref.current!.value as string;"))
	assert.Equal(t, "function List(items) {}", p.Apply("function List<T>(items) {}"))
	assert.Equal(t, "<p>use it as needed</p>", p.Apply("<p>use it as needed</p>"))
}

func TestStripReturnTypes(t *testing.T) {
	p := passByName(t, "strip-return-types")

	assert.Equal(t, "function App() {", p.Apply("function App(): JSX.Element {"))
	assert.Equal(t, "const f = (a) => a;", p.Apply("const f = (a): string | null => a;"))
	assert.Equal(t, "{ok ? (a) : null}", p.Apply("{ok ? (a) : null}"))
}

func TestStripParamTypes(t *testing.T) {
	p := passByName(t, "strip-param-types")

	assert.Equal(t, "function greet(name, age) {", p.Apply("function greet(name: string, age?: number) {"))
	assert.Equal(t, "function Card({ title }) {", p.Apply("function Card({ title }: CardProps) {"))
	assert.Equal(t, "const f = ({ a }) => a;", p.Apply("const f = ({ a }: { a: number }) => a;"))
	assert.Equal(t, "const f = (n = 0) => n;", p.Apply("const f = (n: number = 0) => n;"))
	assert.Equal(t, "try {} catch (e) {", p.Apply("try {} catch (e: unknown) {"))
	assert.Equal(t, "if (a ? b : C) {", p.Apply("if (a ? b : C) {"))
	assert.Equal(t, "const f = ({ title: heading }) => heading;", p.Apply("const f = ({ title: heading }) => heading;"))
}

func TestStripExports(t *testing.T) {
	p := passByName(t, "strip-exports")

	assert.Equal(t, "function App() {}\n", p.Apply("export default function App() {}\nexport default App;\n"))
	assert.Equal(t, "const a = 1;\n", p.Apply("export const a = 1;\nexport { a };\n"))
	assert.Equal(t, "class Box {}", p.Apply("export class Box {}"))
	assert.Equal(t, "() => null;", p.Apply("export default () => null;"))
}

func TestCollapseBlankLines(t *testing.T) {
	p := passByName(t, "collapse-blank-lines")

	assert.Equal(t, "a\n\nb", p.Apply("a\n\n\n\nb"))
	assert.Equal(t, "a\n\nb", p.Apply("a\n  \n\t\n\nb"))
	assert.Equal(t, "a\n\nb", p.Apply("a\n\nb"))
}
