/*
 * doc.go, part of goqr.
 *
 * Copyright 2026 Raul Mera <rmera{at}usachDOTcl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

/*Package qr is the main package of the goqr library. It provides the atom,
structure and density-map types for crystallographic structure refinement,
plus the narrow interfaces through which the refinement engine consumes its
collaborators (restraint evaluators and experimental-data evaluators).

The engine itself, i.e. the adaptive data/restraints weight balancing and
the composite objective functions fed to the optimizer, lives in the
refine subpackage. Concrete restraint evaluators (harmonic geometry
restraints and wrappers for external quantum-chemistry programs) live in
the restraint subpackage.

goqr does not compute structure factors or handle crystal symmetry. The
crystallographic side of a refinement enters through the DataFitEvaluator
interface, which any structure-factor engine can implement.*/
package qr
